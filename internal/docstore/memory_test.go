package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Title     string         `json:"titulo"`
	Remaining int            `json:"cupoDisponible"`
	Status    string         `json:"estado"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"datos,omitempty"`
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Add(ctx, "activities", testDoc{Title: "Yoga", Remaining: 2, Status: "active"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var got testDoc
	require.NoError(t, s.Get(ctx, "activities", id, &got))
	assert.Equal(t, "Yoga", got.Title)

	require.NoError(t, s.Update(ctx, "activities", id,
		Field{Path: "cupoDisponible", Value: Increment(-1)},
		Field{Path: "datos.certificadoUrl", Value: "http://x/cert.png"},
	))
	require.NoError(t, s.Get(ctx, "activities", id, &got))
	assert.Equal(t, 1, got.Remaining)
	assert.Equal(t, "http://x/cert.png", got.Data["certificadoUrl"])

	require.NoError(t, s.Delete(ctx, "activities", id))
	assert.ErrorIs(t, s.Get(ctx, "activities", id, &got), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "activities", id), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "activities", id, Field{Path: "estado", Value: "x"}), ErrNotFound)
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Set(ctx, "activities", "a", testDoc{Title: "A", Remaining: 0, Status: "active", CreatedAt: base}))
	require.NoError(t, s.Set(ctx, "activities", "b", testDoc{Title: "B", Remaining: 5, Status: "active", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Set(ctx, "activities", "c", testDoc{Title: "C", Remaining: 3, Status: "finished", CreatedAt: base.Add(2 * time.Hour)}))

	t.Run("FilterAndOrder", func(t *testing.T) {
		snaps, err := s.Query(ctx, "activities", Query{}.
			Where("estado", OpEqual, "active").
			OrderBy("createdAt", Desc))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "b", snaps[0].ID())
		assert.Equal(t, "a", snaps[1].ID())
	})

	t.Run("NumericComparison", func(t *testing.T) {
		snaps, err := s.Query(ctx, "activities", Query{}.Where("cupoDisponible", OpGreater, 0))
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
	})

	t.Run("NotEqualAndLimit", func(t *testing.T) {
		snaps, err := s.Query(ctx, "activities", Query{Limit: 1}.Where("estado", OpNotEqual, "finished"))
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		var d testDoc
		require.NoError(t, snaps[0].DataTo(&d))
		assert.Equal(t, "active", d.Status)
	})

	t.Run("MissingFieldNeverMatches", func(t *testing.T) {
		snaps, err := s.Query(ctx, "activities", Query{}.Where("datos.userId", OpNotEqual, "u1"))
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})
}

func TestMemoryStore_Transaction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "activities", "a", testDoc{Title: "A", Remaining: 1}))

	t.Run("CommitsWrites", func(t *testing.T) {
		err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			var d testDoc
			if err := tx.Get("activities", "a", &d); err != nil {
				return err
			}
			if _, err := tx.Add("activities/a/enrollments", map[string]any{"userId": "u1"}); err != nil {
				return err
			}
			return tx.Update("activities", "a", Field{Path: "cupoDisponible", Value: Increment(-1)})
		})
		require.NoError(t, err)

		var d testDoc
		require.NoError(t, s.Get(ctx, "activities", "a", &d))
		assert.Equal(t, 0, d.Remaining)
		snaps, err := s.Query(ctx, "activities/a/enrollments", Query{})
		require.NoError(t, err)
		assert.Len(t, snaps, 1)
	})

	t.Run("DiscardsWritesOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Set("activities", "z", testDoc{Title: "Z"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, s.Get(ctx, "activities", "z", &testDoc{}), ErrNotFound)
	})

	t.Run("RejectsReadAfterWrite", func(t *testing.T) {
		err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Set("activities", "y", testDoc{}); err != nil {
				return err
			}
			return tx.Get("activities", "a", &testDoc{})
		})
		assert.Error(t, err)
	})
}
