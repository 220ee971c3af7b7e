package affiliate

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu       sync.Mutex
	programs map[string]Program
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{programs: map[string]Program{}} }

func (r *MemoryRepo) List(ctx context.Context, status Status) ([]Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Program, 0, len(r.programs))
	for _, p := range r.programs {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	if !ok {
		return Program{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID] = p
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[p.ID]; !ok {
		return ErrNotFound
	}
	r.programs[p.ID] = p
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[id]; !ok {
		return ErrNotFound
	}
	delete(r.programs, id)
	return nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.programs), nil
}
