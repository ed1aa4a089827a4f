package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLCollection maps a Schema onto a table with one column per field.
type SQLCollection[T any] struct {
	db      *sql.DB
	dialect Dialect
	schema  Schema[T]
}

func NewSQLCollection[T any](db *sql.DB, dialect Dialect, schema Schema[T]) *SQLCollection[T] {
	return &SQLCollection[T]{db: db, dialect: dialect, schema: schema}
}

type binder struct {
	d    Dialect
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *binder) where(conds []Cond) string {
	if len(conds) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		v := normalize(c.Value)
		if v == nil && c.Op == OpEq {
			parts = append(parts, c.Field+" IS NULL")
			continue
		}
		parts = append(parts, c.Field+" "+c.Op.sql()+" "+b.bind(v))
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func (c *SQLCollection[T]) columns() string {
	return strings.Join(c.schema.Fields, ", ")
}

func (c *SQLCollection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.FindOne(ctx, Eq(c.schema.Key, id))
}

func (c *SQLCollection[T]) FindOne(ctx context.Context, conds ...Cond) (T, error) {
	var zero T
	docs, err := c.Find(ctx, Query{Where: conds, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(docs) == 0 {
		return zero, ErrNotFound
	}
	return docs[0], nil
}

func (c *SQLCollection[T]) Find(ctx context.Context, q Query) ([]T, error) {
	if err := c.schema.validate(q.Where, q.OrderBy); err != nil {
		return nil, err
	}

	b := &binder{d: c.dialect}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", c.columns(), c.schema.Name)
	sb.WriteString(b.where(q.Where))

	order := q.OrderBy
	if len(order) == 0 {
		order = []Sort{Asc(c.schema.Key)}
	}
	terms := make([]string, 0, len(order))
	for _, o := range order {
		if o.Desc {
			terms = append(terms, o.Field+" DESC")
		} else {
			terms = append(terms, o.Field+" ASC")
		}
	}
	sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))

	switch {
	case q.Limit > 0:
		sb.WriteString(" LIMIT " + b.bind(int64(q.Limit)))
	case q.Skip > 0 && c.dialect == SQLite:
		sb.WriteString(" LIMIT -1")
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + b.bind(int64(q.Skip)))
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.schema.Name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		doc, err := c.schema.Scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", c.schema.Name, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *SQLCollection[T]) Count(ctx context.Context, conds ...Cond) (int, error) {
	if err := c.schema.validate(conds, nil); err != nil {
		return 0, err
	}
	b := &binder{d: c.dialect}
	query := "SELECT COUNT(*) FROM " + c.schema.Name + b.where(conds)

	var n int
	if err := c.db.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.schema.Name, err)
	}
	return n, nil
}

func (c *SQLCollection[T]) Insert(ctx context.Context, doc T) error {
	b := &binder{d: c.dialect}
	values := c.schema.Values(doc)
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.bind(normalize(v))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.schema.Name, c.columns(), strings.Join(ph, ", "))

	if _, err := c.db.ExecContext(ctx, query, b.args...); err != nil {
		if c.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", c.schema.Name, ErrConflict)
		}
		return fmt.Errorf("inserting %s: %w", c.schema.Name, err)
	}
	return nil
}

func (c *SQLCollection[T]) Save(ctx context.Context, doc T) error {
	return c.SaveIf(ctx, doc)
}

// SaveIf issues a single conditional UPDATE; zero affected rows is resolved
// into ErrNotFound or ErrPrecondition with a follow-up existence check.
func (c *SQLCollection[T]) SaveIf(ctx context.Context, doc T, conds ...Cond) error {
	if err := c.schema.validate(conds, nil); err != nil {
		return err
	}
	id, err := c.schema.key(doc)
	if err != nil {
		return err
	}

	b := &binder{d: c.dialect}
	values := c.schema.Values(doc)
	sets := make([]string, 0, len(values))
	for i, f := range c.schema.Fields {
		if f == c.schema.Key {
			continue
		}
		sets = append(sets, f+" = "+b.bind(normalize(values[i])))
	}
	query := fmt.Sprintf("UPDATE %s SET %s", c.schema.Name, strings.Join(sets, ", "))
	query += b.where(append([]Cond{Eq(c.schema.Key, id)}, conds...))

	res, err := c.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		if c.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", c.schema.Name, ErrConflict)
		}
		return fmt.Errorf("updating %s: %w", c.schema.Name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	n, err := c.Count(ctx, Eq(c.schema.Key, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrPrecondition
}

func (c *SQLCollection[T]) Delete(ctx context.Context, id string) (bool, error) {
	b := &binder{d: c.dialect}
	query := "DELETE FROM " + c.schema.Name + b.where([]Cond{Eq(c.schema.Key, id)})

	res, err := c.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", c.schema.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

