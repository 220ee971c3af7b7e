package stats

import (
	"context"
	"sync"
)

// MemoryRepo holds at most one stats row. A zero MemoryRepo has none.
type MemoryRepo struct {
	mu  sync.Mutex
	row *Stats
}

func NewMemoryRepo(initial *Stats) *MemoryRepo {
	r := &MemoryRepo{}
	if initial != nil {
		s := *initial
		r.row = &s
	}
	return r
}

func (r *MemoryRepo) Get(ctx context.Context) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.row == nil {
		return Stats{}, ErrNotFound
	}
	return *r.row, nil
}

func (r *MemoryRepo) Update(ctx context.Context, fn func(Stats) Stats) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.row == nil {
		return Stats{}, ErrNotFound
	}
	next := fn(*r.row)
	next.ID = r.row.ID
	r.row = &next
	return next, nil
}
