package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"affiliate-blog/internal/rbac"
	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/session"
)

var ErrInvalidRole = errors.New("profile: invalid role")

// Service manages role records and tells mounted guards when a subject's role changes.
type Service struct {
	repo   Repository
	broker realtime.Broker
	clock  func() time.Time
	log    *slog.Logger
}

func NewService(repo Repository, broker realtime.Broker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, broker: broker, clock: time.Now, log: log}
}

// GetRole satisfies authz.RoleStore.
func (s *Service) GetRole(ctx context.Context, subjectID string) (string, error) {
	return s.repo.GetRole(ctx, subjectID)
}

// Ensure creates a viewer profile when none exists and leaves existing ones untouched.
func (s *Service) Ensure(ctx context.Context, subjectID, fullName string) (Profile, error) {
	p, err := s.repo.Get(ctx, subjectID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}
	p = Profile{ID: subjectID, Role: rbac.RoleViewer, FullName: fullName, UpdatedAt: s.clock().UTC()}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SetRole writes the role record and publishes a subject-level session event.
func (s *Service) SetRole(ctx context.Context, subjectID, role string) (Profile, error) {
	if subjectID == "" {
		return Profile{}, fmt.Errorf("%w: subject id required", ErrInvalidRole)
	}
	if !rbac.IsValid(role) {
		return Profile{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	p, err := s.repo.Get(ctx, subjectID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}
	now := s.clock().UTC()
	p.ID = subjectID
	p.Role = role
	p.UpdatedAt = now
	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}

	if s.broker != nil {
		e := session.Event{Type: session.EventUpdated, SubjectID: subjectID, At: now}
		if err := s.broker.Publish(ctx, realtime.TopicSessions, e); err != nil {
			s.log.Warn("role change publish failed", "subject_id", subjectID, "err", err)
		}
	}
	return p, nil
}
