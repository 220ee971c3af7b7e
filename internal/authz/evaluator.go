package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"affiliate-blog/internal/session"
)

// Evaluator maps (snapshot, capability) to a Verdict.
// For a fixed snapshot, capability, clock reading and role record the verdict is identical.
type Evaluator struct {
	roles     RoleStore
	clock     func() time.Time
	adminRole string
	metrics   Recorder
}

type Option func(*Evaluator)

func WithClock(fn func() time.Time) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.clock = fn
		}
	}
}

func WithAdminRole(role string) Option {
	return func(e *Evaluator) {
		if role != "" {
			e.adminRole = role
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.metrics = r
		}
	}
}

func NewEvaluator(roles RoleStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		roles:     roles,
		clock:     time.Now,
		adminRole: DefaultAdminRole,
		metrics:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate never returns an error: collaborator failures become RoleLookupFailed.
func (e *Evaluator) Evaluate(ctx context.Context, snap session.Snapshot, c Capability) Verdict {
	if snap.Kind == session.KindUnknown {
		return deny(c, ReasonRoleLookupFailed)
	}

	authenticated := snap.Kind == session.KindPresent && !snap.Session.Expired(e.clock())

	switch c {
	case CapabilityAuthenticated:
		if !authenticated {
			return deny(c, ReasonNoSession)
		}
		return allow(c)

	case CapabilityAdmin:
		if !authenticated {
			return deny(c, ReasonNoSession)
		}
		res, err := e.ResolveRole(ctx, snap.Session)
		if err != nil {
			v := deny(c, ReasonRoleLookupFailed)
			v.Role = res
			return v
		}
		if res.Role != e.adminRole {
			v := deny(c, ReasonInsufficientRole)
			v.Role = res
			return v
		}
		v := allow(c)
		v.Role = res
		return v

	default:
		return deny(c, ReasonInsufficientRole)
	}
}

// ResolveRole checks the session claims first and falls back to exactly one role store lookup.
// A missing role record resolves to an empty role, not an error.
func (e *Evaluator) ResolveRole(ctx context.Context, s *session.Session) (RoleLookupResult, error) {
	res := RoleLookupResult{SubjectID: s.SubjectID, SessionID: s.ID}

	if role, ok := RoleFromClaims(s.Claims); ok {
		res.Role = role
		res.Source = RoleSourceClaims
		e.metrics.RecordRoleLookup(string(RoleSourceClaims), "resolved")
		return res, nil
	}

	res.Source = RoleSourceStore
	if e.roles == nil {
		e.metrics.RecordRoleLookup(string(RoleSourceStore), "failed")
		return res, ErrNoRoleStore
	}

	role, err := e.roles.GetRole(ctx, s.SubjectID)
	switch {
	case errors.Is(err, ErrRoleNotFound):
		e.metrics.RecordRoleLookup(string(RoleSourceStore), "not_found")
		return res, nil
	case err != nil:
		e.metrics.RecordRoleLookup(string(RoleSourceStore), "failed")
		return res, fmt.Errorf("authz: role lookup for subject %s: %w", s.SubjectID, err)
	}
	res.Role = role
	e.metrics.RecordRoleLookup(string(RoleSourceStore), "resolved")
	return res, nil
}
