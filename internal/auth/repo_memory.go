package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryUserRepository is an in-memory user store for tests and local development.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]User{}, byEmail: map[string]string{}}
}

func (r *MemoryUserRepository) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrUserExists
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

// MemorySessionRepository keeps session records in memory. Expiry is checked on read.
type MemorySessionRepository struct {
	mu      sync.Mutex
	records map[string]SessionRecord
	clock   func() time.Time
	err     error
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{records: map[string]SessionRecord{}, clock: time.Now}
}

func (r *MemorySessionRepository) Put(ctx context.Context, rec SessionRecord, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if rec.ID == "" {
		return ErrInvalidArgument
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return SessionRecord{}, r.err
	}
	rec, ok := r.records[id]
	if !ok || (!rec.ExpiresAt.IsZero() && !r.clock().Before(rec.ExpiresAt)) {
		return SessionRecord{}, ErrSessionNotFound
	}
	return rec, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.records, id)
	return nil
}

// SetErr makes every subsequent call fail with err; nil restores normal behavior.
func (r *MemorySessionRepository) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
