package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"mibarrio-backend/internal/ids"
)

// MemoryStore keeps documents as JSON in process memory. Transactions hold the store lock
// for their whole duration and buffer writes until fn returns nil.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]any)}
}

type memSnapshot struct {
	id   string
	data map[string]any
}

func (s *memSnapshot) ID() string { return s.id }

func (s *memSnapshot) DataTo(v any) error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func toMap(data any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("document must encode to an object: %w", err)
	}
	return m, nil
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(doc map[string]any, path string, value any) {
	parts := splitPath(path)
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// compare orders two decoded JSON values of the same kind. ok is false when they are not comparable.
func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		ta, errA := time.Parse(time.RFC3339Nano, av)
		tb, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return ta.Compare(tb), true
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func matches(doc map[string]any, f Filter) (bool, error) {
	got, ok := lookup(doc, f.Path)
	if !ok || got == nil {
		return false, nil
	}
	want, err := normalize(f.Value)
	if err != nil {
		return false, err
	}
	c, ok := compare(got, want)
	if !ok {
		return f.Op == OpNotEqual, nil
	}
	switch f.Op {
	case OpEqual:
		return c == 0, nil
	case OpNotEqual:
		return c != 0, nil
	case OpLess:
		return c < 0, nil
	case OpLessEqual:
		return c <= 0, nil
	case OpGreater:
		return c > 0, nil
	case OpGreaterEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", f.Op)
}

func (s *MemoryStore) get(collection, id string) (map[string]any, bool) {
	doc, ok := s.collections[collection][id]
	return doc, ok
}

func (s *MemoryStore) put(collection, id string, doc map[string]any) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}
	coll[id] = doc
}

func (s *MemoryStore) applyUpdate(collection, id string, fields []Field) error {
	doc, ok := s.get(collection, id)
	if !ok {
		return ErrNotFound
	}
	updated := copyMap(doc)
	for _, f := range fields {
		if n, ok := asIncrement(f.Value); ok {
			cur, _ := lookup(updated, f.Path)
			num, _ := cur.(float64)
			assign(updated, f.Path, num+float64(n))
			continue
		}
		v, err := normalize(f.Value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", f.Path, err)
		}
		assign(updated, f.Path, v)
	}
	s.put(collection, id, updated)
	return nil
}

func (s *MemoryStore) query(collection string, q Query) ([]Snapshot, error) {
	var out []*memSnapshot
	for id, doc := range s.collections[collection] {
		keep := true
		for _, f := range q.Filters {
			ok, err := matches(doc, f)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, &memSnapshot{id: id, data: copyMap(doc)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			a, _ := lookup(out[i].data, o.Path)
			b, _ := lookup(out[j].data, o.Path)
			c, _ := compare(a, b)
			if c == 0 {
				continue
			}
			if o.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].id < out[j].id
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	snaps := make([]Snapshot, len(out))
	for i, s := range out {
		snaps[i] = s
	}
	return snaps, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.get(collection, id)
	if !ok {
		return ErrNotFound
	}
	return (&memSnapshot{id: id, data: doc}).DataTo(dst)
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data any) error {
	doc, err := toMap(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, doc)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data any) (string, error) {
	id := ids.New()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields ...Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyUpdate(collection, id, fields)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(collection, id); !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(collection, q)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, w := range tx.writes {
		if err := w(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	store  *MemoryStore
	writes []func() error
}

func (t *memTx) Get(collection, id string, dst any) error {
	if len(t.writes) > 0 {
		return fmt.Errorf("read after write in transaction")
	}
	doc, ok := t.store.get(collection, id)
	if !ok {
		return ErrNotFound
	}
	return (&memSnapshot{id: id, data: doc}).DataTo(dst)
}

func (t *memTx) Query(collection string, q Query) ([]Snapshot, error) {
	if len(t.writes) > 0 {
		return nil, fmt.Errorf("read after write in transaction")
	}
	return t.store.query(collection, q)
}

func (t *memTx) Set(collection, id string, data any) error {
	doc, err := toMap(data)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, func() error {
		t.store.put(collection, id, doc)
		return nil
	})
	return nil
}

func (t *memTx) Add(collection string, data any) (string, error) {
	id := ids.New()
	return id, t.Set(collection, id, data)
}

func (t *memTx) Update(collection, id string, fields ...Field) error {
	if _, ok := t.store.get(collection, id); !ok {
		return ErrNotFound
	}
	t.writes = append(t.writes, func() error {
		return t.store.applyUpdate(collection, id, fields)
	})
	return nil
}

func (t *memTx) Delete(collection, id string) error {
	t.writes = append(t.writes, func() error {
		delete(t.store.collections[collection], id)
		return nil
	})
	return nil
}
