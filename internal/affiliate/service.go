package affiliate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"affiliate-blog/internal/realtime"
	"affiliate-blog/pkg/utils"

	"github.com/google/uuid"
)

const Table = "affiliate_programs"

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

func (s *Service) List(ctx context.Context) ([]Program, error) {
	return s.repo.List(ctx, "")
}

// ListActive is the public directory.
func (s *Service) ListActive(ctx context.Context) ([]Program, error) {
	return s.repo.List(ctx, StatusActive)
}

func (s *Service) Get(ctx context.Context, id string) (Program, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) Create(ctx context.Context, userID string, in ProgramInput) (Program, error) {
	if userID == "" {
		return Program{}, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	if err := utils.ValidateStruct(in); err != nil {
		return Program{}, err
	}
	now := s.clock().UTC()
	p := Program{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(in.Name),
		Description:      strings.TrimSpace(in.Description),
		Category:         strings.TrimSpace(in.Category),
		Commission:       strings.TrimSpace(in.Commission),
		CookieDuration:   strings.TrimSpace(in.CookieDuration),
		PaymentThreshold: strings.TrimSpace(in.PaymentThreshold),
		Status:           in.Status,
		Website:          in.Website,
		Logo:             in.Logo,
		Rating:           in.Rating,
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.Name == "" {
		return Program{}, fmt.Errorf("%w: name is blank", ErrInvalidArgument)
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Program{}, err
	}
	s.publish(ctx, realtime.OpInsert, p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, patch ProgramPatch) (Program, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return Program{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Program{}, err
	}
	setTrimmed(&p.Name, patch.Name)
	setTrimmed(&p.Description, patch.Description)
	setTrimmed(&p.Category, patch.Category)
	setTrimmed(&p.Commission, patch.Commission)
	setTrimmed(&p.CookieDuration, patch.CookieDuration)
	setTrimmed(&p.PaymentThreshold, patch.PaymentThreshold)
	setTrimmed(&p.Website, patch.Website)
	setTrimmed(&p.Logo, patch.Logo)
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Rating != nil {
		r := *patch.Rating
		p.Rating = &r
	}
	if p.Name == "" {
		return Program{}, fmt.Errorf("%w: name is blank", ErrInvalidArgument)
	}
	p.UpdatedAt = s.clock().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return Program{}, err
	}
	s.publish(ctx, realtime.OpUpdate, p.ID)
	return p, nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.OpDelete, id)
	return nil
}

// InsertSeed stores a fully formed program, bypassing input validation.
func (s *Service) InsertSeed(ctx context.Context, p Program) (Program, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.clock().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.repo.Insert(ctx, p); err != nil {
		return Program{}, err
	}
	s.publish(ctx, realtime.OpInsert, p.ID)
	return p, nil
}

func (s *Service) publish(ctx context.Context, op realtime.Op, id string) {
	if err := realtime.PublishChange(ctx, s.broker, Table, op, id); err != nil {
		s.log.Warn("change publish failed", "table", Table, "op", string(op), "id", id, "err", err)
	}
}
