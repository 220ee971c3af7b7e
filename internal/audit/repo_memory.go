package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// SetErr makes subsequent appends fail with err.
func (r *MemoryRepo) SetErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
