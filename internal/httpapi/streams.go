package httpapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"affiliate-blog/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// StreamLimiter caps concurrent admin event streams per subject.
type StreamLimiter interface {
	Acquire(ctx context.Context, subjectID string) (bool, error)
	// Refresh keeps a held slot alive; called on every heartbeat.
	Refresh(ctx context.Context, subjectID string) error
	Release(ctx context.Context, subjectID string) error
}

// streamSlotTTL bounds how long a slot outlives a crashed instance.
const streamSlotTTL = 2 * time.Minute

// RedisStreamLimiter shares the cap across API instances.
type RedisStreamLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
}

func NewRedisStreamLimiter(rdb redis.Cmdable, prefix string, limit int) *RedisStreamLimiter {
	return &RedisStreamLimiter{rdb: rdb, prefix: prefix, limit: limit}
}

func (l *RedisStreamLimiter) key(subjectID string) string {
	return l.prefix + "streams:" + subjectID
}

func (l *RedisStreamLimiter) Acquire(ctx context.Context, subjectID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key(subjectID), l.limit, streamSlotTTL)
}

func (l *RedisStreamLimiter) Refresh(ctx context.Context, subjectID string) error {
	return utils.RefreshConcurrencyCap(ctx, l.rdb, l.key(subjectID), streamSlotTTL)
}

func (l *RedisStreamLimiter) Release(ctx context.Context, subjectID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key(subjectID))
}

// MemoryStreamLimiter is a single-process limiter for tests and local runs.
type MemoryStreamLimiter struct {
	mu    sync.Mutex
	limit int
	held  map[string]int
}

func NewMemoryStreamLimiter(limit int) *MemoryStreamLimiter {
	return &MemoryStreamLimiter{limit: limit, held: map[string]int{}}
}

func (l *MemoryStreamLimiter) Acquire(ctx context.Context, subjectID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[subjectID] >= l.limit {
		return false, nil
	}
	l.held[subjectID]++
	return true, nil
}

func (l *MemoryStreamLimiter) Refresh(ctx context.Context, subjectID string) error { return nil }

func (l *MemoryStreamLimiter) Release(ctx context.Context, subjectID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[subjectID] <= 1 {
		delete(l.held, subjectID)
		return nil
	}
	l.held[subjectID]--
	return nil
}

func (l *MemoryStreamLimiter) Held(subjectID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[subjectID]
}

// acquireStream fails open: a limiter outage must not take the dashboard down.
func acquireStream(ctx context.Context, l StreamLimiter, subjectID string, log *slog.Logger) (ok bool, release func()) {
	if l == nil {
		return true, func() {}
	}
	acquired, err := l.Acquire(ctx, subjectID)
	if err != nil {
		log.Warn("stream limiter unavailable, admitting stream", "subject_id", subjectID, "err", err)
		return true, func() {}
	}
	if !acquired {
		return false, func() {}
	}
	return true, func() {
		// The request context is already done when the stream ends.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx, subjectID); err != nil {
			log.Warn("stream slot release failed", "subject_id", subjectID, "err", err)
		}
	}
}
