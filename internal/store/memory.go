package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemCollection keeps documents in process memory. Results come back in
// insertion order unless the query sorts them.
type MemCollection[T any] struct {
	schema Schema[T]

	mu    sync.RWMutex
	docs  map[string]T
	order []string
}

func NewMemCollection[T any](schema Schema[T]) *MemCollection[T] {
	return &MemCollection[T]{
		schema: schema,
		docs:   make(map[string]T),
	}
}

func (c *MemCollection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.FindOne(ctx, Eq(c.schema.Key, id))
}

func (c *MemCollection[T]) FindOne(ctx context.Context, conds ...Cond) (T, error) {
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

func (c *MemCollection[T]) Find(_ context.Context, q Query) ([]T, error) {
	if err := c.schema.validate(q.Where, q.OrderBy); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type row struct {
		doc    T
		values []any
	}
	var rows []row
	for _, id := range c.order {
		doc := c.docs[id]
		values := c.schema.Values(doc)
		if c.match(values, q.Where) {
			rows = append(rows, row{doc: doc, values: values})
		}
	}

	if len(q.OrderBy) > 0 {
		idx := make([]int, len(q.OrderBy))
		for i, o := range q.OrderBy {
			idx[i], _ = c.schema.index(o.Field)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			for k, o := range q.OrderBy {
				n := orderValues(rows[i].values[idx[k]], rows[j].values[idx[k]])
				if n == 0 {
					continue
				}
				if o.Desc {
					return n > 0
				}
				return n < 0
			}
			return false
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(rows) {
			return []T{}, nil
		}
		rows = rows[q.Skip:]
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, c.clone(r.doc))
	}
	return out, nil
}

func (c *MemCollection[T]) Count(_ context.Context, conds ...Cond) (int, error) {
	if err := c.schema.validate(conds, nil); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, id := range c.order {
		if c.match(c.schema.Values(c.docs[id]), conds) {
			n++
		}
	}
	return n, nil
}

func (c *MemCollection[T]) Insert(_ context.Context, doc T) error {
	id, err := c.schema.key(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("%s %s exists: %w", c.schema.Name, id, ErrConflict)
	}
	if err := c.checkUnique(id, doc); err != nil {
		return err
	}
	c.docs[id] = c.clone(doc)
	c.order = append(c.order, id)
	return nil
}

func (c *MemCollection[T]) Save(ctx context.Context, doc T) error {
	return c.SaveIf(ctx, doc)
}

func (c *MemCollection[T]) SaveIf(_ context.Context, doc T, conds ...Cond) error {
	if err := c.schema.validate(conds, nil); err != nil {
		return err
	}
	id, err := c.schema.key(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	if !c.match(c.schema.Values(current), conds) {
		return ErrPrecondition
	}
	if err := c.checkUnique(id, doc); err != nil {
		return err
	}
	c.docs[id] = c.clone(doc)
	return nil
}

func (c *MemCollection[T]) Delete(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (c *MemCollection[T]) match(values []any, conds []Cond) bool {
	for _, cond := range conds {
		i, _ := c.schema.index(cond.Field)
		if !matches(cond, values[i]) {
			return false
		}
	}
	return true
}

// checkUnique must be called with mu held.
func (c *MemCollection[T]) checkUnique(id string, doc T) error {
	if len(c.schema.Unique) == 0 {
		return nil
	}
	values := c.schema.Values(doc)
	for _, group := range c.schema.Unique {
		conds := make([]Cond, 0, len(group))
		for _, f := range group {
			i, err := c.schema.index(f)
			if err != nil {
				return err
			}
			conds = append(conds, Eq(f, values[i]))
		}
		for otherID, other := range c.docs {
			if otherID == id {
				continue
			}
			if c.matchUnique(c.schema.Values(other), conds) {
				return fmt.Errorf("%s: duplicate %v: %w", c.schema.Name, group, ErrConflict)
			}
		}
	}
	return nil
}

// matchUnique treats NULLs as distinct, the way SQL unique indexes do.
func (c *MemCollection[T]) matchUnique(values []any, conds []Cond) bool {
	for _, cond := range conds {
		if normalize(cond.Value) == nil {
			return false
		}
	}
	return c.match(values, conds)
}

func (c *MemCollection[T]) clone(doc T) T {
	if c.schema.Clone != nil {
		return c.schema.Clone(doc)
	}
	return doc
}

// orderValues sorts nil before any value.
func orderValues(a, b any) int {
	an, bn := normalize(a) == nil, normalize(b) == nil
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	n, _ := compare(a, b)
	return n
}
