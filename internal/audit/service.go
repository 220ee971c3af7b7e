package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records internal audit information. Records are not exposed through the API.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: log}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Type == EventTypeAdminAction && e.ActorSubjectID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records a write performed through the admin API.
// Failures are logged and swallowed.
func (s *Service) LogAdminAction(ctx context.Context, actorSubjectID, ip, resource, message string, metadata map[string]any) {
	err := s.Append(ctx, Event{
		Type:           EventTypeAdminAction,
		ActorSubjectID: actorSubjectID,
		IPAddress:      ip,
		Resource:       resource,
		Message:        message,
		Metadata:       metadata,
	})
	if err != nil {
		s.log.Warn("audit append failed", "type", string(EventTypeAdminAction), "resource", resource, "err", err)
	}
}

// LogDenied records a guard denial. subjectID is empty when no session was present.
func (s *Service) LogDenied(ctx context.Context, subjectID, capability, reason, ip, resource string) {
	err := s.Append(ctx, Event{
		Type:           EventTypeAccessDenied,
		ActorSubjectID: subjectID,
		Capability:     capability,
		Reason:         reason,
		IPAddress:      ip,
		Resource:       resource,
		Message:        "access denied",
	})
	if err != nil {
		s.log.Warn("audit append failed", "type", string(EventTypeAccessDenied), "resource", resource, "err", err)
	}
}
