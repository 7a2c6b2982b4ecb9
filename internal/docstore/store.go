// Package docstore is the document-store abstraction the repositories are written against.
// Documents are flat maps of named fields addressed by collection path and id; subordinate
// collections use slash paths such as "activities/{id}/enrollments".
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get, Update and Delete when the document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrTooMuchContention is returned when a transaction could not commit after all retries
	ErrTooMuchContention = errors.New("transaction aborted after too many retries")
)

type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter restricts a query to documents whose field at Path compares to Value.
// Documents without the field never match.
type Filter struct {
	Path  string
	Op    Op
	Value any
}

type Order struct {
	Path      string
	Direction Direction
}

type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Where returns a copy of q with an extra filter
func (q Query) Where(path string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Path: path, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an extra sort key
func (q Query) OrderBy(path string, dir Direction) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Path: path, Direction: dir})
	return q
}

// Field is a single field update. Path is dot separated for nested fields.
type Field struct {
	Path  string
	Value any
}

type increment struct {
	n int64
}

// Increment is a field value that atomically adds n to the stored number.
// The stored value is not floor checked.
func Increment(n int64) any {
	return increment{n: n}
}

func asIncrement(v any) (int64, bool) {
	inc, ok := v.(increment)
	return inc.n, ok
}

type Snapshot interface {
	ID() string
	DataTo(v any) error
}

// Tx is the view of the store inside RunTransaction. All reads must happen before the first write.
type Tx interface {
	Get(collection, id string, dst any) error
	Query(collection string, q Query) ([]Snapshot, error)
	Set(collection, id string, data any) error
	Add(collection string, data any) (string, error)
	Update(collection, id string, fields ...Field) error
	Delete(collection, id string) error
}

type Store interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Set(ctx context.Context, collection, id string, data any) error
	// Add stores data under a generated id and returns it
	Add(ctx context.Context, collection string, data any) (string, error)
	Update(ctx context.Context, collection, id string, fields ...Field) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	// RunTransaction runs fn atomically. fn may be called more than once if the backend retries.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}
