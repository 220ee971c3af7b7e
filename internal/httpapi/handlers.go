// Package httpapi exposes the blog, affiliate directory and admin dashboard over HTTP.
package httpapi

import (
	"log/slog"
	"time"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/audit"
	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/guard"
	"affiliate-blog/internal/metrics"
	"affiliate-blog/internal/profile"
	"affiliate-blog/internal/rbac"
	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/seed"
	"affiliate-blog/internal/stats"

	"github.com/gin-gonic/gin"
)

const defaultHeartbeat = 15 * time.Second

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Provider
	Profiles  *profile.Service
	Posts     *blog.Service
	Programs  *affiliate.Service
	Stats     *stats.Service
	Seeder    *seed.Seeder
	Audit     *audit.Service
	Broker    realtime.Broker
	Evaluator *authz.Evaluator
	Policy    guard.Policy
	Metrics   *metrics.Collector
	Streams   StreamLimiter
	Log       *slog.Logger

	// SecureCookies marks auth cookies Secure; set outside local development.
	SecureCookies bool
	// Heartbeat is the admin event stream keepalive interval.
	Heartbeat time.Duration
}

func (h *Handlers) recorder() guard.Recorder {
	if h.Metrics == nil {
		return nil
	}
	return h.Metrics
}

func (h *Handlers) guardConfig() rbac.Config {
	return rbac.Config{
		Sessions:  h.Auth,
		Evaluator: h.Evaluator,
		Policy:    h.Policy,
		Metrics:   h.recorder(),
		OnDenied:  h.auditDenied,
	}
}

func (h *Handlers) auditDenied(c *gin.Context, v authz.Verdict) {
	if h.Audit == nil {
		return
	}
	h.Audit.LogDenied(c.Request.Context(), v.Role.SubjectID, string(v.Capability), string(v.Reason), c.ClientIP(), c.Request.URL.Path)
}

func (h *Handlers) auditAction(c *gin.Context, resource, message string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	subject, _ := auth.SubjectID(c.Request.Context())
	h.Audit.LogAdminAction(c.Request.Context(), subject, c.ClientIP(), resource, message, metadata)
}

func (h *Handlers) heartbeat() time.Duration {
	if h.Heartbeat > 0 {
		return h.Heartbeat
	}
	return defaultHeartbeat
}
