package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsMiddleware returns nil when no origins are configured. Credentials are
// allowed because the admin UI authenticates with cookies.
func corsMiddleware(origins []string, log *slog.Logger) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	log.Info("CORS enabled", "origin_count", len(origins), "origins", origins)

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
