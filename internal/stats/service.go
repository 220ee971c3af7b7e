package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"affiliate-blog/internal/blog"
	"affiliate-blog/pkg/utils"
)

// PostTotals reports the post count and summed views.
type PostTotals interface {
	Totals(ctx context.Context) (blog.Totals, error)
}

type UserCounter interface {
	CountUsers(ctx context.Context) (int, error)
}

type Service struct {
	repo  Repository
	posts PostTotals
	users UserCounter
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, posts PostTotals, users UserCounter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, posts: posts, users: users, clock: time.Now, log: log}
}

func (s *Service) Get(ctx context.Context) (Stats, error) {
	if s.repo == nil {
		return Stats{}, errors.New("stats: repository not configured")
	}
	return s.repo.Get(ctx)
}

// Update applies p to the existing row and stamps LastUpdated.
func (s *Service) Update(ctx context.Context, p Patch) (Stats, error) {
	if err := utils.ValidateStruct(p); err != nil {
		return Stats{}, err
	}
	if s.repo == nil {
		return Stats{}, errors.New("stats: repository not configured")
	}
	stamp := s.clock().UTC()
	return s.repo.Update(ctx, func(cur Stats) Stats {
		next := p.apply(cur)
		next.LastUpdated = stamp
		return next
	})
}

// Recalculate recounts posts, views and users. A failed user count keeps the
// dashboard usable by reporting a single user; post failures are returned.
func (s *Service) Recalculate(ctx context.Context) (Stats, error) {
	if s.posts == nil {
		return Stats{}, errors.New("stats: post totals not configured")
	}
	totals, err := s.posts.Totals(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: count posts: %w", err)
	}

	users := 1
	if s.users != nil {
		n, err := s.users.CountUsers(ctx)
		if err != nil {
			s.log.Warn("user count failed, defaulting to 1", "err", err)
		} else {
			users = max(n, 1)
		}
	}

	return s.Update(ctx, Patch{
		TotalPosts: &totals.Posts,
		TotalViews: &totals.Views,
		TotalUsers: &users,
	})
}
