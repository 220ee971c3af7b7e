package httpapi

import (
	"net/http"
	"strings"

	"affiliate-blog/internal/blog"

	"github.com/gin-gonic/gin"
)

// ListPosts serves the public blog index. ?q= searches published posts.
func (h *Handlers) ListPosts(c *gin.Context) {
	var (
		posts []blog.Post
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		posts, err = h.Posts.Search(c.Request.Context(), q, string(blog.StatusPublished))
	} else {
		posts, err = h.Posts.ListPublished(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// GetPost serves a published post by slug and counts the view.
func (h *Handlers) GetPost(c *gin.Context) {
	p, err := h.Posts.GetPublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": p})
}

// ListPrograms serves the public directory of active affiliate programs.
func (h *Handlers) ListPrograms(c *gin.Context) {
	programs, err := h.Programs.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"programs": programs})
}
