package httpapi

import (
	"errors"
	"net/http"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/profile"
	"affiliate-blog/internal/seed"
	"affiliate-blog/internal/stats"
	"affiliate-blog/pkg/logger"
	"affiliate-blog/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP responses. Unknown errors are
// logged and reported as 500 without detail.
func respondError(c *gin.Context, err error) {
	if fields, ok := utils.ValidationFields(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}

	switch {
	case errors.Is(err, blog.ErrNotFound),
		errors.Is(err, affiliate.ErrNotFound),
		errors.Is(err, stats.ErrNotFound),
		errors.Is(err, profile.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, blog.ErrSlugTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "slug already in use"})
	case errors.Is(err, auth.ErrUserExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "user already exists"})
	case errors.Is(err, blog.ErrInvalidArgument),
		errors.Is(err, affiliate.ErrInvalidArgument),
		errors.Is(err, auth.ErrInvalidArgument),
		errors.Is(err, profile.ErrInvalidRole),
		errors.Is(err, seed.ErrUserRequired):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, auth.ErrInvalidToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
}
