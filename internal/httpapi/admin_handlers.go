package httpapi

import (
	"net/http"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/stats"

	"github.com/gin-gonic/gin"
)

// --- Posts ---

func (h *Handlers) AdminListPosts(c *gin.Context) {
	posts, err := h.Posts.Search(c.Request.Context(), c.Query("q"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handlers) AdminGetPost(c *gin.Context) {
	p, err := h.Posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": p})
}

func (h *Handlers) AdminCreatePost(c *gin.Context) {
	var in blog.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	subject, err := auth.SubjectID(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.Posts.Create(c.Request.Context(), subject, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, blog.Table+"/"+p.ID, "post created", map[string]any{"slug": p.Slug})
	c.JSON(http.StatusCreated, gin.H{"post": p})
}

func (h *Handlers) AdminUpdatePost(c *gin.Context) {
	var patch blog.PostPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Posts.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, blog.Table+"/"+p.ID, "post updated", nil)
	c.JSON(http.StatusOK, gin.H{"post": p})
}

func (h *Handlers) AdminDeletePost(c *gin.Context) {
	id := c.Param("id")
	if err := h.Posts.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, blog.Table+"/"+id, "post deleted", nil)
	c.Status(http.StatusNoContent)
}

// --- Affiliate programs ---

func (h *Handlers) AdminListPrograms(c *gin.Context) {
	programs, err := h.Programs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"programs": programs})
}

func (h *Handlers) AdminGetProgram(c *gin.Context) {
	p, err := h.Programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"program": p})
}

func (h *Handlers) AdminCreateProgram(c *gin.Context) {
	var in affiliate.ProgramInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	subject, err := auth.SubjectID(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.Programs.Create(c.Request.Context(), subject, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, affiliate.Table+"/"+p.ID, "program created", map[string]any{"name": p.Name})
	c.JSON(http.StatusCreated, gin.H{"program": p})
}

func (h *Handlers) AdminUpdateProgram(c *gin.Context) {
	var patch affiliate.ProgramPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Programs.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, affiliate.Table+"/"+p.ID, "program updated", nil)
	c.JSON(http.StatusOK, gin.H{"program": p})
}

func (h *Handlers) AdminDeleteProgram(c *gin.Context) {
	id := c.Param("id")
	if err := h.Programs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, affiliate.Table+"/"+id, "program deleted", nil)
	c.Status(http.StatusNoContent)
}

// --- Stats ---

func (h *Handlers) AdminGetStats(c *gin.Context) {
	s, err := h.Stats.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": s})
}

func (h *Handlers) AdminUpdateStats(c *gin.Context) {
	var patch stats.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c)
		return
	}
	s, err := h.Stats.Update(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, "user_stats", "stats updated", nil)
	c.JSON(http.StatusOK, gin.H{"stats": s})
}

func (h *Handlers) AdminRecalculateStats(c *gin.Context) {
	s, err := h.Stats.Recalculate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": s})
}

// --- Seed and roles ---

func (h *Handlers) AdminSeed(c *gin.Context) {
	subject, err := auth.SubjectID(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.Seeder.Seed(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, "seed", "demo data seeded", map[string]any{
		"posts":    res.PostsSeeded,
		"programs": res.ProgramsSeeded,
	})
	c.JSON(http.StatusOK, res)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// AdminSetRole writes a subject's role record. Open sessions of the subject
// re-evaluate through the published session event.
func (h *Handlers) AdminSetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Profiles.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditAction(c, "profiles/"+p.ID, "role changed", map[string]any{"role": p.Role})
	c.JSON(http.StatusOK, gin.H{"profile": p})
}
