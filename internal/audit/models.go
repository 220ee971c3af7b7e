package audit

import "time"

// Event is an append-only audit record.
//
// Events are never updated or deleted. Actor and IP capture are best-effort;
// callers must not block a request on audit failures.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// ActorSubjectID is empty for anonymous denials.
	ActorSubjectID string `json:"actor_subject_id,omitempty"`

	// Capability and Reason are set for access_denied events.
	Capability string `json:"capability,omitempty"`
	Reason     string `json:"reason,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`

	// Resource is the request path or entity the event concerns, e.g. "blog_posts/<id>".
	Resource string `json:"resource,omitempty"`

	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction  EventType = "admin_action"
	EventTypeAccessDenied EventType = "access_denied"
)
