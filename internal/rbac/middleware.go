package rbac

import (
	"errors"
	"net/http"

	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/guard"
	"affiliate-blog/internal/session"
	"affiliate-blog/pkg/logger"

	"github.com/gin-gonic/gin"
)

const ctxKeyVerdict = "verdict"

// DenyFunc observes a denial before the response is written.
type DenyFunc func(c *gin.Context, v authz.Verdict)

type Config struct {
	Sessions  session.Provider
	Evaluator guard.Evaluator
	Policy    guard.Policy
	Metrics   guard.Recorder
	OnDenied  DenyFunc
}

// Require runs a one-shot guard for the request's session and aborts on denial.
// no_session and role_lookup_failed produce identical 401 responses;
// insufficient_role produces 403.
func Require(cfg Config, capability authz.Capability) gin.HandlerFunc {
	policy := cfg.Policy
	return func(c *gin.Context) {
		store := session.NewStore(cfg.Sessions, auth.TokenFromRequest(c.Request))
		defer store.Close()

		st, err := guard.Check(c.Request.Context(), store, cfg.Evaluator, capability, guard.Options{
			Policy:  policy,
			Logger:  logger.FromGin(c),
			Metrics: cfg.Metrics,
		})
		if err != nil {
			if errors.Is(err, c.Request.Context().Err()) {
				c.Abort()
				return
			}
			st = guard.Status{State: guard.StateDenied, Verdict: authz.Verdict{Capability: capability, Reason: authz.ReasonRoleLookupFailed}}
		}

		if st.State != guard.StateAllowed {
			if cfg.OnDenied != nil {
				cfg.OnDenied(c, st.Verdict)
			}
			abortDenied(c, policy, st.Verdict)
			return
		}

		// The cached snapshot is the one the verdict was computed from.
		if snap := store.Current(c.Request.Context()); snap.Session != nil {
			c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), snap.Session))
		}
		c.Set(ctxKeyVerdict, st.Verdict)
		c.Next()
	}
}

func abortDenied(c *gin.Context, policy guard.Policy, v authz.Verdict) {
	rd, _ := policy.Redirect(v, c.Request.URL.Path)
	if v.Reason == authz.ReasonInsufficientRole {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required", "redirect": rd.Target, "message": rd.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": rd.Target, "message": rd.Message})
}

// VerdictFrom returns the verdict that admitted the request.
func VerdictFrom(c *gin.Context) (authz.Verdict, bool) {
	v, ok := c.Get(ctxKeyVerdict)
	if !ok {
		return authz.Verdict{}, false
	}
	verdict, ok := v.(authz.Verdict)
	return verdict, ok
}
