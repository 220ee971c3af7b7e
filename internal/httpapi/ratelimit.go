package httpapi

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = time.Hour
)

// ipLimiterStore holds per-IP token buckets.
type ipLimiterStore struct {
	limiters sync.Map // client IP -> *ipLimiterEntry
	rps      float64
	burst    int
	now      func() time.Time
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// LoginRateLimit enforces a per-IP token bucket on credential endpoints.
// Stale buckets are dropped until ctx is done.
func LoginRateLimit(ctx context.Context, rps float64, burst int, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	store := &ipLimiterStore{rps: rps, burst: burst, now: time.Now}
	go store.cleanupStale(ctx, limiterCleanupInterval)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.get(clientIP)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(math.Ceil(reservation.Delay().Seconds()))
			reservation.Cancel()

			log.Debug("login rate limit exceeded", "client_ip", clientIP, "retry_after", retryAfter)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many sign-in attempts. Please retry later.",
			})
			return
		}
		c.Next()
	}
}

func (s *ipLimiterStore) get(ip string) *rate.Limiter {
	now := s.now()
	if v, ok := s.limiters.Load(ip); ok {
		e := v.(*ipLimiterEntry)
		e.mu.Lock()
		e.lastAccess = now
		e.mu.Unlock()
		return e.limiter
	}
	e := &ipLimiterEntry{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst), lastAccess: now}
	actual, _ := s.limiters.LoadOrStore(ip, e)
	return actual.(*ipLimiterEntry).limiter
}

func (s *ipLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(s.now().Add(-limiterIdleTTL))
		}
	}
}

func (s *ipLimiterStore) sweep(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		e := value.(*ipLimiterEntry)
		e.mu.Lock()
		stale := e.lastAccess.Before(threshold)
		e.mu.Unlock()
		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}
