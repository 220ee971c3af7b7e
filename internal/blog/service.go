package blog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"affiliate-blog/internal/realtime"
	"affiliate-blog/pkg/utils"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const Table = "blog_posts"

type Service struct {
	repo      Repository
	broker    realtime.Broker
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	log       *slog.Logger
}

func NewService(repo Repository, broker realtime.Broker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		broker:    broker,
		sanitizer: bluemonday.UGCPolicy(),
		clock:     time.Now,
		log:       log,
	}
}

func (s *Service) ListPublished(ctx context.Context) ([]Post, error) {
	return s.repo.List(ctx, Filter{Status: StatusPublished})
}

func (s *Service) ListAll(ctx context.Context) ([]Post, error) {
	return s.repo.List(ctx, Filter{})
}

// Search matches term against title, author and category, case-insensitively.
// status "" or "All" matches every status.
func (s *Service) Search(ctx context.Context, term, status string) ([]Post, error) {
	f := Filter{Term: term}
	if status != "" && status != StatusAll {
		st := Status(status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
		}
		f.Status = st
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	return s.repo.Get(ctx, id)
}

// GetPublishedBySlug hides drafts and counts the read.
func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (Post, error) {
	p, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Post{}, err
	}
	if p.Status != StatusPublished {
		return Post{}, ErrNotFound
	}
	views, err := s.repo.IncrementViews(ctx, p.ID)
	if err != nil {
		s.log.Warn("view count increment failed", "post_id", p.ID, "err", err)
		return p, nil
	}
	p.Views = views
	return p, nil
}

func (s *Service) Create(ctx context.Context, userID string, in PostInput) (Post, error) {
	if userID == "" {
		return Post{}, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	if err := utils.ValidateStruct(in); err != nil {
		return Post{}, err
	}
	slug := in.Slug
	if slug == "" {
		slug = in.Title
	}
	slug = Slugify(slug)
	if slug == "" {
		return Post{}, fmt.Errorf("%w: title yields an empty slug", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	p := Post{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Slug:      slug,
		Content:   s.sanitizer.Sanitize(in.Content),
		Status:    in.Status,
		Category:  strings.TrimSpace(in.Category),
		Author:    strings.TrimSpace(in.Author),
		Date:      now,
		UserID:    userID,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Post{}, err
	}
	s.publish(ctx, realtime.OpInsert, p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, patch PostPatch) (Post, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return Post{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Slug != nil {
		p.Slug = Slugify(*patch.Slug)
		if p.Slug == "" {
			return Post{}, fmt.Errorf("%w: empty slug", ErrInvalidArgument)
		}
	}
	if patch.Content != nil {
		p.Content = s.sanitizer.Sanitize(*patch.Content)
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Author != nil {
		p.Author = strings.TrimSpace(*patch.Author)
	}
	p.UpdatedAt = s.clock().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return Post{}, err
	}
	s.publish(ctx, realtime.OpUpdate, p.ID)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.OpDelete, id)
	return nil
}

// InsertSeed stores a fully formed post, bypassing input validation.
func (s *Service) InsertSeed(ctx context.Context, p Post) (Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	now := s.clock().UTC()
	if p.Date.IsZero() {
		p.Date = now
	}
	p.UpdatedAt = now
	p.Content = s.sanitizer.Sanitize(p.Content)
	if err := s.repo.Insert(ctx, p); err != nil {
		return Post{}, err
	}
	s.publish(ctx, realtime.OpInsert, p.ID)
	return p, nil
}

func (s *Service) Totals(ctx context.Context) (Totals, error) {
	return s.repo.Totals(ctx)
}

func (s *Service) publish(ctx context.Context, op realtime.Op, id string) {
	if err := realtime.PublishChange(ctx, s.broker, Table, op, id); err != nil {
		s.log.Warn("change publish failed", "table", Table, "op", string(op), "id", id, "err", err)
	}
}
