// Package authz decides whether a session snapshot satisfies a capability.
//
// The decision is fail-closed: an indeterminate identity or a failed role lookup
// is always a denial. The only network round trip is the role record lookup, and
// it happens only for the admin capability when the session claims carry no role.
package authz

import (
	"context"
	"errors"
)

// Capability is a named access requirement declared by a protected view.
type Capability string

const (
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityAdmin         Capability = "admin"
)

// Reason explains a denial. Allowed verdicts carry ReasonNone.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoSession        Reason = "no_session"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonRoleLookupFailed Reason = "role_lookup_failed"
)

// DefaultAdminRole is the role value that grants CapabilityAdmin.
const DefaultAdminRole = "admin"

// RoleSource records where a role was resolved from.
type RoleSource string

const (
	RoleSourceClaims RoleSource = "claims"
	RoleSourceStore  RoleSource = "store"
)

// RoleLookupResult is valid only for the session it was computed for.
type RoleLookupResult struct {
	Role      string     `json:"role,omitempty"`
	Source    RoleSource `json:"source,omitempty"`
	SubjectID string     `json:"subject_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

// Verdict is the outcome of evaluating one capability against one snapshot.
type Verdict struct {
	Capability Capability       `json:"capability"`
	Allowed    bool             `json:"allowed"`
	Reason     Reason           `json:"reason,omitempty"`
	Role       RoleLookupResult `json:"role"`
}

func allow(c Capability) Verdict { return Verdict{Capability: c, Allowed: true} }

func deny(c Capability, r Reason) Verdict { return Verdict{Capability: c, Reason: r} }

// ErrRoleNotFound is returned by a RoleStore when the subject has no role record.
var ErrRoleNotFound = errors.New("authz: role record not found")

var ErrNoRoleStore = errors.New("authz: role store not configured")

// RoleStore is the external role record store keyed by subject identifier.
type RoleStore interface {
	GetRole(ctx context.Context, subjectID string) (string, error)
}

// RoleStoreFunc adapts a function to RoleStore.
type RoleStoreFunc func(ctx context.Context, subjectID string) (string, error)

func (f RoleStoreFunc) GetRole(ctx context.Context, subjectID string) (string, error) {
	return f(ctx, subjectID)
}

// Recorder receives role lookup outcomes.
type Recorder interface {
	RecordRoleLookup(source string, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRoleLookup(string, string) {}

// RoleFromClaims reads the role marker from provider claims.
// app_metadata.role wins over a top-level role claim; user_metadata is never trusted.
func RoleFromClaims(claims map[string]any) (string, bool) {
	if claims == nil {
		return "", false
	}
	if meta, ok := claims["app_metadata"].(map[string]any); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role, true
		}
	}
	if role, ok := claims["role"].(string); ok && role != "" {
		return role, true
	}
	return "", false
}
