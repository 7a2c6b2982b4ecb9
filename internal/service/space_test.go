package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mibarrio-backend/internal/domain"
)

func TestSpaceService_Reserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewSpaceService(f.store.SpaceRepository, f.store.ReservationRepository)

	salon := &domain.Space{Name: "Salón de usos múltiples", Type: "salon", Capacity: 80, Active: true}
	require.NoError(t, svc.CreateSpace(ctx, salon))
	closed := &domain.Space{Name: "Cancha", Type: "deporte", Active: false}
	require.NoError(t, svc.CreateSpace(ctx, closed))

	first := &domain.Reservation{SpaceID: salon.ID, UserID: "u1", Date: "2026-11-07", StartTime: "10:00", EndTime: "12:00"}
	require.NoError(t, svc.Reserve(ctx, first))
	assert.NotEmpty(t, first.ID)

	tests := []struct {
		name   string
		res    domain.Reservation
		status int
	}{
		{"Overlap", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-07", StartTime: "11:00", EndTime: "13:00"}, http.StatusConflict},
		{"Contained", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-07", StartTime: "10:30", EndTime: "11:00"}, http.StatusConflict},
		{"Adjacent", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-07", StartTime: "12:00", EndTime: "13:00"}, 0},
		{"OtherDay", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-08", StartTime: "10:00", EndTime: "12:00"}, 0},
		{"InactiveSpace", domain.Reservation{SpaceID: closed.ID, UserID: "u2", Date: "2026-11-07", StartTime: "10:00", EndTime: "12:00"}, http.StatusConflict},
		{"EndBeforeStart", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-09", StartTime: "12:00", EndTime: "10:00"}, http.StatusBadRequest},
		{"BadDate", domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "9/11", StartTime: "10:00", EndTime: "11:00"}, http.StatusBadRequest},
		{"Anonymous", domain.Reservation{SpaceID: salon.ID, Date: "2026-11-09", StartTime: "10:00", EndTime: "11:00"}, http.StatusUnauthorized},
		{"UnknownSpace", domain.Reservation{SpaceID: "missing", UserID: "u2", Date: "2026-11-09", StartTime: "10:00", EndTime: "11:00"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			err := svc.Reserve(ctx, &res)
			if tt.status == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}

	day, err := svc.ListReservations(ctx, salon.ID, "2026-11-07")
	require.NoError(t, err)
	assert.Len(t, day, 2)
}

func TestSpaceService_CancelReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewSpaceService(f.store.SpaceRepository, f.store.ReservationRepository)

	salon := &domain.Space{Name: "Salón", Active: true}
	require.NoError(t, svc.CreateSpace(ctx, salon))
	res := &domain.Reservation{SpaceID: salon.ID, UserID: "u1", Date: "2026-11-07", StartTime: "10:00", EndTime: "12:00"}
	require.NoError(t, svc.Reserve(ctx, res))

	assert.Equal(t, http.StatusForbidden, StatusOf(svc.CancelReservation(ctx, "u2", false, salon.ID, res.ID)))
	assert.Equal(t, http.StatusNotFound, StatusOf(svc.CancelReservation(ctx, "u1", false, "other-space", res.ID)))
	require.NoError(t, svc.CancelReservation(ctx, "adm", true, salon.ID, res.ID))
	assert.Equal(t, http.StatusNotFound, StatusOf(svc.CancelReservation(ctx, "u1", false, salon.ID, res.ID)))

	// slot is free again
	again := &domain.Reservation{SpaceID: salon.ID, UserID: "u2", Date: "2026-11-07", StartTime: "10:00", EndTime: "12:00"}
	assert.NoError(t, svc.Reserve(ctx, again))
}

func TestSpaceService_CRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewSpaceService(f.store.SpaceRepository, f.store.ReservationRepository)

	assert.Equal(t, http.StatusBadRequest, StatusOf(svc.CreateSpace(ctx, &domain.Space{Name: " "})))

	plaza := &domain.Space{Name: "Plaza", Active: true}
	require.NoError(t, svc.CreateSpace(ctx, plaza))
	sum := &domain.Space{Name: "SUM", Active: true}
	require.NoError(t, svc.CreateSpace(ctx, sum))

	sum.Active = false
	require.NoError(t, svc.UpdateSpace(ctx, sum))

	active, err := svc.ListSpaces(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Plaza", active[0].Name)

	all, err := svc.ListSpaces(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.DeleteSpace(ctx, plaza.ID))
	assert.Equal(t, http.StatusNotFound, StatusOf(svc.DeleteSpace(ctx, plaza.ID)))
	assert.Equal(t, http.StatusNotFound, StatusOf(svc.UpdateSpace(ctx, &domain.Space{ID: "missing", Name: "x"})))
}
