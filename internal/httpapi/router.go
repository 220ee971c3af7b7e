package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/metrics"
	"affiliate-blog/internal/rbac"
	"affiliate-blog/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type RouterOptions struct {
	CORSAllowOrigins []string
	LoginRateRPS     float64
	LoginRateBurst   int

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter wires every route. ctx bounds background work owned by the router.
func NewRouter(ctx context.Context, h *Handlers, opts RouterOptions) *gin.Engine {
	log := h.Log
	if log == nil {
		log = slog.Default()
	}

	if opts.LoginRateRPS <= 0 {
		opts.LoginRateRPS = 1
	}
	if opts.LoginRateBurst <= 0 {
		opts.LoginRateBurst = 5
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(logger.Middleware(log))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware())
	}
	if mw := corsMiddleware(opts.CORSAllowOrigins, log); mw != nil {
		r.Use(mw)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	api := r.Group("/api")
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:slug", h.GetPost)
	api.GET("/affiliate-programs", h.ListPrograms)

	guards := h.guardConfig()

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", LoginRateLimit(ctx, opts.LoginRateRPS, opts.LoginRateBurst, log), h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/session", rbac.Require(guards, authz.CapabilityAuthenticated), h.Session)
	}

	admin := api.Group("/admin")
	admin.Use(rbac.Require(guards, authz.CapabilityAdmin))
	{
		admin.GET("/posts", h.AdminListPosts)
		admin.POST("/posts", h.AdminCreatePost)
		admin.GET("/posts/:id", h.AdminGetPost)
		admin.PATCH("/posts/:id", h.AdminUpdatePost)
		admin.DELETE("/posts/:id", h.AdminDeletePost)

		admin.GET("/affiliate-programs", h.AdminListPrograms)
		admin.POST("/affiliate-programs", h.AdminCreateProgram)
		admin.GET("/affiliate-programs/:id", h.AdminGetProgram)
		admin.PATCH("/affiliate-programs/:id", h.AdminUpdateProgram)
		admin.DELETE("/affiliate-programs/:id", h.AdminDeleteProgram)

		admin.GET("/stats", h.AdminGetStats)
		admin.PATCH("/stats", h.AdminUpdateStats)
		admin.POST("/stats/recalculate", h.AdminRecalculateStats)

		admin.POST("/seed", h.AdminSeed)
		admin.PUT("/users/:id/role", h.AdminSetRole)

		admin.GET("/events", h.AdminEvents)
	}

	return r
}
