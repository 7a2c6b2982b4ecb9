package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"mibarrio-backend/internal/ids"
	"mibarrio-backend/internal/logger"
)

const (
	postgresBackend  = "postgres"
	maxTxAttempts    = 5
	serializationErr = "40001"
)

// Schema creates the single table every collection is stored in.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore keeps every document as a JSONB row keyed by (collection, id).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the documents table if it does not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

type rawSnapshot struct {
	id   string
	data []byte
}

func (s *rawSnapshot) ID() string { return s.id }

func (s *rawSnapshot) DataTo(v any) error {
	return json.Unmarshal(s.data, v)
}

func pgGet(ctx context.Context, q queryer, collection, id string, dst any) error {
	var data []byte
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func pgSet(ctx context.Context, q queryer, collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`, collection, id, raw)
	return err
}

// buildUpdate nests one jsonb_set per field. Increments read the pre-update row.
func buildUpdate(collection, id string, fields []Field) (string, []any, error) {
	args := []any{collection, id}
	expr := "data"
	for _, f := range fields {
		path := pq.Array(splitPath(f.Path))
		args = append(args, path)
		pathArg := len(args)
		if n, ok := asIncrement(f.Value); ok {
			args = append(args, n)
			expr = fmt.Sprintf("jsonb_set(%s, $%d, to_jsonb(COALESCE((data #>> $%d)::numeric, 0) + $%d), true)",
				expr, pathArg, pathArg, len(args))
			continue
		}
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode field %s: %w", f.Path, err)
		}
		args = append(args, raw)
		expr = fmt.Sprintf("jsonb_set(%s, $%d, $%d::jsonb, true)", expr, pathArg, len(args))
	}
	return fmt.Sprintf("UPDATE documents SET data = %s WHERE collection = $1 AND id = $2", expr), args, nil
}

func pgUpdate(ctx context.Context, q queryer, collection, id string, fields []Field) error {
	query, args, err := buildUpdate(collection, id, fields)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func pgDelete(ctx context.Context, q queryer, collection, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var sqlOps = map[Op]string{
	OpEqual:        "=",
	OpNotEqual:     "<>",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
}

func buildQuery(collection string, q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		op, ok := sqlOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Path, err)
		}
		args = append(args, pq.Array(splitPath(f.Path)), raw)
		fmt.Fprintf(&sb, " AND data #> $%d %s $%d::jsonb", len(args)-1, op, len(args))
	}
	if len(q.Orders) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.Orders {
			if i > 0 {
				sb.WriteString(", ")
			}
			args = append(args, pq.Array(splitPath(o.Path)))
			dir := "ASC"
			if o.Direction == Desc {
				dir = "DESC"
			}
			fmt.Fprintf(&sb, "data #> $%d %s", len(args), dir)
		}
		sb.WriteString(", id ASC")
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

func pgQuery(ctx context.Context, qr queryer, collection string, q Query) ([]Snapshot, error) {
	query, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := qr.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		s := &rawSnapshot{}
		if err := rows.Scan(&s.id, &s.data); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, dst any) error {
	logger.StoreCall(postgresBackend, "Get", collection, "id", id)
	err := pgGet(ctx, s.db, collection, id, dst)
	if !errors.Is(err, ErrNotFound) {
		logger.StoreResult(postgresBackend, "Get", collection, err, "id", id)
	}
	return err
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data any) error {
	logger.StoreCall(postgresBackend, "Set", collection, "id", id)
	err := pgSet(ctx, s.db, collection, id, data)
	logger.StoreResult(postgresBackend, "Set", collection, err, "id", id)
	return err
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data any) (string, error) {
	id := ids.New()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields ...Field) error {
	logger.StoreCall(postgresBackend, "Update", collection, "id", id, "fields", len(fields))
	err := pgUpdate(ctx, s.db, collection, id, fields)
	logger.StoreResult(postgresBackend, "Update", collection, err, "id", id)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	logger.StoreCall(postgresBackend, "Delete", collection, "id", id)
	err := pgDelete(ctx, s.db, collection, id)
	logger.StoreResult(postgresBackend, "Delete", collection, err, "id", id)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	logger.StoreCall(postgresBackend, "Query", collection, "filters", len(q.Filters))
	snaps, err := pgQuery(ctx, s.db, collection, q)
	logger.StoreResult(postgresBackend, "Query", collection, err, "results", len(snaps))
	return snaps, err
}

// RunTransaction runs fn in a serializable transaction, retrying on serialization failures.
func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != serializationErr {
			return err
		}
		logger.Warn("Retrying serialization failure", "backend", postgresBackend, "attempt", attempt)
	}
	return ErrTooMuchContention
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTx{ctx: ctx, tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Get(collection, id string, dst any) error {
	return pgGet(t.ctx, t.tx, collection, id, dst)
}

func (t *pgTx) Query(collection string, q Query) ([]Snapshot, error) {
	return pgQuery(t.ctx, t.tx, collection, q)
}

func (t *pgTx) Set(collection, id string, data any) error {
	return pgSet(t.ctx, t.tx, collection, id, data)
}

func (t *pgTx) Add(collection string, data any) (string, error) {
	id := ids.New()
	return id, pgSet(t.ctx, t.tx, collection, id, data)
}

func (t *pgTx) Update(collection, id string, fields ...Field) error {
	return pgUpdate(t.ctx, t.tx, collection, id, fields)
}

func (t *pgTx) Delete(collection, id string) error {
	return pgDelete(t.ctx, t.tx, collection, id)
}
