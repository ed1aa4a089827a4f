// Package store is a small document-style persistence layer with an in-memory
// backend and a database/sql backend (PostgreSQL or SQLite).
package store

import (
	"context"
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrConflict     = fmt.Errorf("conflict")
	ErrPrecondition = fmt.Errorf("precondition failed")
)

type Op int

const (
	OpEq Op = iota
	OpLt
	OpLte
)

func (o Op) sql() string {
	switch o {
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	default:
		return "="
	}
}

// Cond filters documents on a single field. A nil Value never matches Lt/Lte.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Cond  { return Cond{Field: field, Op: OpEq, Value: v} }
func Lt(field string, v any) Cond  { return Cond{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Cond { return Cond{Field: field, Op: OpLte, Value: v} }

type Sort struct {
	Field string
	Desc  bool
}

func Asc(field string) Sort  { return Sort{Field: field} }
func Desc(field string) Sort { return Sort{Field: field, Desc: true} }

// Query selects documents. Limit <= 0 means no limit.
type Query struct {
	Where   []Cond
	OrderBy []Sort
	Skip    int
	Limit   int
}

// Collection stores documents of type T keyed by Schema.Key.
type Collection[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	FindOne(ctx context.Context, conds ...Cond) (T, error)
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, conds ...Cond) (int, error)
	Insert(ctx context.Context, doc T) error
	// Save replaces the stored document with the same key.
	Save(ctx context.Context, doc T) error
	// SaveIf replaces the stored document only when it still matches conds.
	// It returns ErrPrecondition when the document exists but no longer matches.
	SaveIf(ctx context.Context, doc T, conds ...Cond) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Schema maps a document type onto named fields. Values must return one value
// per entry of Fields, in order, using driver-compatible types
// (string, bool, int64, time.Time, decimal.Decimal, nil).
type Schema[T any] struct {
	Name   string
	Key    string
	Fields []string
	Unique [][]string
	Values func(T) []any
	// Scan builds a document from a row holding Fields in order.
	Scan func(scan func(dest ...any) error) (T, error)
	// Clone deep-copies a document. Optional; documents are copied by value without it.
	Clone func(T) T
}

func (s *Schema[T]) index(field string) (int, error) {
	for i, f := range s.Fields {
		if f == field {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: unknown field %q", s.Name, field)
}

func (s *Schema[T]) key(doc T) (string, error) {
	i, err := s.index(s.Key)
	if err != nil {
		return "", err
	}
	id, ok := s.Values(doc)[i].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%s: document has no %s", s.Name, s.Key)
	}
	return id, nil
}

func (s *Schema[T]) validate(conds []Cond, sorts []Sort) error {
	for _, c := range conds {
		if _, err := s.index(c.Field); err != nil {
			return err
		}
	}
	for _, o := range sorts {
		if _, err := s.index(o.Field); err != nil {
			return err
		}
	}
	return nil
}
