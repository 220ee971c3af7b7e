package stats

import (
	"errors"
	"time"
)

// ErrNotFound is returned when the singleton stats row has not been created.
var ErrNotFound = errors.New("stats: no stats record found")

type Stats struct {
	ID            string    `json:"id"`
	TotalPosts    int       `json:"total_posts"`
	TotalViews    int64     `json:"total_views"`
	TotalUsers    int       `json:"total_users"`
	TotalEarnings float64   `json:"total_earnings"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Patch is a partial update; nil fields keep their stored value.
type Patch struct {
	TotalPosts    *int     `json:"total_posts" validate:"omitempty,gte=0"`
	TotalViews    *int64   `json:"total_views" validate:"omitempty,gte=0"`
	TotalUsers    *int     `json:"total_users" validate:"omitempty,gte=0"`
	TotalEarnings *float64 `json:"total_earnings" validate:"omitempty,gte=0"`
}

func (p Patch) apply(s Stats) Stats {
	if p.TotalPosts != nil {
		s.TotalPosts = *p.TotalPosts
	}
	if p.TotalViews != nil {
		s.TotalViews = *p.TotalViews
	}
	if p.TotalUsers != nil {
		s.TotalUsers = *p.TotalUsers
	}
	if p.TotalEarnings != nil {
		s.TotalEarnings = *p.TotalEarnings
	}
	return s
}
