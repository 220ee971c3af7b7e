// Package seed fills an empty deployment with demo posts and affiliate programs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/stats"
)

var ErrUserRequired = errors.New("seed: user id required")

// Result reports what Seed inserted and what it found already present.
type Result struct {
	PostsSeeded      int         `json:"posts_seeded"`
	PostsExisting    int         `json:"posts_existing"`
	ProgramsSeeded   int         `json:"programs_seeded"`
	ProgramsExisting int         `json:"programs_existing"`
	Stats            stats.Stats `json:"stats"`
}

type Seeder struct {
	posts    *blog.Service
	programs *affiliate.Service
	stats    *stats.Service
	clock    func() time.Time
	log      *slog.Logger
}

func New(posts *blog.Service, programs *affiliate.Service, st *stats.Service, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{posts: posts, programs: programs, stats: st, clock: time.Now, log: log}
}

// Seed inserts demo rows owned by userID into each table that is still empty,
// then recalculates the dashboard stats and sets the demo earnings figure.
func (s *Seeder) Seed(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, ErrUserRequired
	}
	var out Result

	totals, err := s.posts.Totals(ctx)
	if err != nil {
		return out, fmt.Errorf("seed: count posts: %w", err)
	}
	programs, err := s.programs.Count(ctx)
	if err != nil {
		return out, fmt.Errorf("seed: count programs: %w", err)
	}

	if totals.Posts == 0 {
		if out.PostsSeeded, err = s.seedPosts(ctx, userID); err != nil {
			return out, err
		}
	} else {
		out.PostsExisting = totals.Posts
		s.log.Info("blog posts already exist, skipping", "count", totals.Posts)
	}

	if programs == 0 {
		if out.ProgramsSeeded, err = s.seedPrograms(ctx, userID); err != nil {
			return out, err
		}
	} else {
		out.ProgramsExisting = programs
		s.log.Info("affiliate programs already exist, skipping", "count", programs)
	}

	if _, err := s.stats.Recalculate(ctx); err != nil {
		return out, fmt.Errorf("seed: recalculate stats: %w", err)
	}
	earnings := float64(DemoEarnings)
	out.Stats, err = s.stats.Update(ctx, stats.Patch{TotalEarnings: &earnings})
	if err != nil {
		return out, fmt.Errorf("seed: update stats: %w", err)
	}

	s.log.Info("demo data seeded",
		"posts", out.PostsSeeded,
		"programs", out.ProgramsSeeded,
	)
	return out, nil
}

func (s *Seeder) seedPosts(ctx context.Context, userID string) (int, error) {
	now := s.clock().UTC()
	n := 0
	for i, p := range demoPosts() {
		p.UserID = userID
		p.Content = loremContent
		// Newest first, one day apart.
		p.Date = now.Add(-time.Duration(i) * 24 * time.Hour)
		if _, err := s.posts.InsertSeed(ctx, p); err != nil {
			return n, fmt.Errorf("seed: insert post %q: %w", p.Title, err)
		}
		n++
	}
	return n, nil
}

func (s *Seeder) seedPrograms(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, p := range demoPrograms() {
		p.UserID = userID
		if _, err := s.programs.InsertSeed(ctx, p); err != nil {
			return n, fmt.Errorf("seed: insert program %q: %w", p.Name, err)
		}
		n++
	}
	return n, nil
}
