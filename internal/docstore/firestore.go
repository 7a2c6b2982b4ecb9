package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mibarrio-backend/internal/logger"
)

const firestoreBackend = "firestore"

// FirestoreStore is the production backend. Struct documents are encoded with their firestore tags.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func mapFirestoreErr(err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

type firestoreSnapshot struct {
	doc *firestore.DocumentSnapshot
}

func (s *firestoreSnapshot) ID() string { return s.doc.Ref.ID }

func (s *firestoreSnapshot) DataTo(v any) error { return s.doc.DataTo(v) }

func toUpdates(fields []Field) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if n, ok := asIncrement(f.Value); ok {
			value = firestore.FieldTransformIncrement(n)
		}
		updates = append(updates, firestore.Update{Path: f.Path, Value: value})
	}
	return updates
}

func (s *FirestoreStore) buildQuery(collection string, q Query) firestore.Query {
	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Path, string(f.Op), f.Value)
	}
	for _, o := range q.Orders {
		dir := firestore.Asc
		if o.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(o.Path, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func wrapDocs(docs []*firestore.DocumentSnapshot) []Snapshot {
	snaps := make([]Snapshot, len(docs))
	for i, d := range docs {
		snaps[i] = &firestoreSnapshot{doc: d}
	}
	return snaps
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string, dst any) error {
	logger.StoreCall(firestoreBackend, "Get", collection, "id", id)
	doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		err = mapFirestoreErr(err)
		if !errors.Is(err, ErrNotFound) {
			logger.StoreResult(firestoreBackend, "Get", collection, err, "id", id)
		}
		return err
	}
	return doc.DataTo(dst)
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data any) error {
	logger.StoreCall(firestoreBackend, "Set", collection, "id", id)
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	logger.StoreResult(firestoreBackend, "Set", collection, err, "id", id)
	return err
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data any) (string, error) {
	logger.StoreCall(firestoreBackend, "Add", collection)
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	logger.StoreResult(firestoreBackend, "Add", collection, err)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields ...Field) error {
	logger.StoreCall(firestoreBackend, "Update", collection, "id", id, "fields", len(fields))
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	err = mapFirestoreErr(err)
	logger.StoreResult(firestoreBackend, "Update", collection, err, "id", id)
	return err
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	logger.StoreCall(firestoreBackend, "Delete", collection, "id", id)
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	err = mapFirestoreErr(err)
	logger.StoreResult(firestoreBackend, "Delete", collection, err, "id", id)
	return err
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	logger.StoreCall(firestoreBackend, "Query", collection, "filters", len(q.Filters))
	docs, err := s.buildQuery(collection, q).Documents(ctx).GetAll()
	logger.StoreResult(firestoreBackend, "Query", collection, err, "results", len(docs))
	if err != nil {
		return nil, err
	}
	return wrapDocs(docs), nil
}

// RunTransaction delegates to the Firestore client, which retries contended transactions.
func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: tx})
	})
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) ref(collection, id string) *firestore.DocumentRef {
	return t.store.client.Collection(collection).Doc(id)
}

func (t *firestoreTx) Get(collection, id string, dst any) error {
	doc, err := t.tx.Get(t.ref(collection, id))
	if err != nil {
		return mapFirestoreErr(err)
	}
	return doc.DataTo(dst)
}

func (t *firestoreTx) Query(collection string, q Query) ([]Snapshot, error) {
	docs, err := t.tx.Documents(t.store.buildQuery(collection, q)).GetAll()
	if err != nil {
		return nil, err
	}
	return wrapDocs(docs), nil
}

func (t *firestoreTx) Set(collection, id string, data any) error {
	return t.tx.Set(t.ref(collection, id), data)
}

func (t *firestoreTx) Add(collection string, data any) (string, error) {
	ref := t.store.client.Collection(collection).NewDoc()
	if err := t.tx.Create(ref, data); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (t *firestoreTx) Update(collection, id string, fields ...Field) error {
	return t.tx.Update(t.ref(collection, id), toUpdates(fields))
}

func (t *firestoreTx) Delete(collection, id string) error {
	return t.tx.Delete(t.ref(collection, id))
}
