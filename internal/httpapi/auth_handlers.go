package httpapi

import (
	"net/http"
	"strings"
	"time"

	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/session"
	"affiliate-blog/pkg/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Login checks credentials, opens a session and sets the auth cookies.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	pair, sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Profiles != nil {
		if _, err := h.Profiles.Ensure(c.Request.Context(), sess.SubjectID, ""); err != nil {
			logger.FromGin(c).Warn("profile ensure failed", "subject_id", sess.SubjectID, "err", err)
		}
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"user":    sessionUser{ID: sess.SubjectID, Email: sess.Email},
		"session": pair,
	})
}

// Refresh rotates the token pair. The refresh token comes from the body or the refresh cookie.
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badJSON(c)
			return
		}
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token, _ = c.Cookie(auth.RefreshCookieName)
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh token required"})
		return
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{"session": pair})
}

// Logout ends the session through a request-scoped store so the cached
// snapshot is cleared even when the provider fails. Cookies are always cleared.
func (h *Handlers) Logout(c *gin.Context) {
	store := session.NewStore(h.Auth, auth.TokenFromRequest(c.Request))
	defer store.Close()

	err := store.SignOut(c.Request.Context())
	h.clearAuthCookies(c)
	if err != nil {
		logger.FromGin(c).Error("sign out failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "sign out failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Session describes the caller. Mounted behind the authenticated guard.
func (h *Handlers) Session(c *gin.Context) {
	s, ok := auth.SessionFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	out := gin.H{
		"user":       sessionUser{ID: s.SubjectID, Email: s.Email},
		"expires_at": s.ExpiresAt,
	}
	if h.Evaluator != nil {
		res, err := h.Evaluator.ResolveRole(c.Request.Context(), s)
		if err != nil {
			logger.FromGin(c).Warn("role resolution failed", "subject_id", s.SubjectID, "err", err)
		} else if res.Role != "" {
			out["role"] = res.Role
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) setAuthCookies(c *gin.Context, pair auth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.AccessCookieName, pair.AccessToken, maxAge(pair.AccessExpiresAt), "/", "", h.SecureCookies, true)
	c.SetCookie(auth.RefreshCookieName, pair.RefreshToken, maxAge(pair.RefreshExpiresAt), "/api/auth", "", h.SecureCookies, true)
}

func (h *Handlers) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.AccessCookieName, "", -1, "/", "", h.SecureCookies, true)
	c.SetCookie(auth.RefreshCookieName, "", -1, "/api/auth", "", h.SecureCookies, true)
}

func maxAge(exp time.Time) int {
	return max(int(time.Until(exp).Seconds()), 1)
}
