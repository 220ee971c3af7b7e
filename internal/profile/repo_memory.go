package profile

import (
	"context"
	"fmt"
	"sync"

	"affiliate-blog/internal/authz"
)

type MemoryRepo struct {
	mu       sync.Mutex
	profiles map[string]Profile
	err      error
	lookups  int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{profiles: map[string]Profile{}} }

func (r *MemoryRepo) GetRole(ctx context.Context, subjectID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.err != nil {
		return "", r.err
	}
	p, ok := r.profiles[subjectID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", subjectID, authz.ErrRoleNotFound)
	}
	return p.Role, nil
}

func (r *MemoryRepo) Get(ctx context.Context, subjectID string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Profile{}, r.err
	}
	p, ok := r.profiles[subjectID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.profiles[p.ID] = p
	return nil
}

// SetErr makes every call fail with err until reset with nil.
func (r *MemoryRepo) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Lookups counts GetRole calls.
func (r *MemoryRepo) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
