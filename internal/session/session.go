package session

import (
	"context"
	"time"
)

// Session is the authenticated identity bound to one browser context.
// Claims are supplied by the authentication provider and may carry a role marker.
type Session struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id"`
	Email     string         `json:"email,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the session is unusable at now.
// A nil session or a zero expiry counts as expired.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// Kind classifies a current-session lookup.
// The zero value is KindUnknown so an uninitialized snapshot fails closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindNone
	KindPresent
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPresent:
		return "present"
	default:
		return "unknown"
	}
}

// Snapshot is the result of asking the store for the current session.
// Err is only set for KindUnknown.
type Snapshot struct {
	Kind    Kind
	Session *Session
	Err     error
}

func Unknown(err error) Snapshot { return Snapshot{Kind: KindUnknown, Err: err} }

func None() Snapshot { return Snapshot{Kind: KindNone} }

// Present wraps s; a nil session yields None.
func Present(s *Session) Snapshot {
	if s == nil {
		return None()
	}
	return Snapshot{Kind: KindPresent, Session: s}
}

type EventType string

const (
	EventCreated   EventType = "created"
	EventDestroyed EventType = "destroyed"
	EventRefreshed EventType = "refreshed"
	// EventUpdated signals a subject-level change (claims or role record).
	EventUpdated EventType = "updated"
	// EventExpired is raised by the Store itself when the cached session reaches ExpiresAt.
	EventExpired EventType = "expired"
)

// Event is a provider notification about a session or its subject.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	At        time.Time `json:"at"`
}

// Provider is the external authentication provider.
//
// GetSession returns (nil, nil) when the token does not resolve to a live session.
// A non-nil error means the provider could not answer (network, storage).
type Provider interface {
	GetSession(ctx context.Context, token string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	OnSessionChange(fn func(Event)) (unsubscribe func())
}
