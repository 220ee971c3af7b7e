package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"affiliate-blog/internal/blog"
	"affiliate-blog/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTotals struct {
	totals blog.Totals
	err    error
}

func (f fakeTotals) Totals(ctx context.Context) (blog.Totals, error) { return f.totals, f.err }

type fakeUsers struct {
	n   int
	err error
}

func (f fakeUsers) CountUsers(ctx context.Context) (int, error) { return f.n, f.err }

var now = time.Unix(1700000000, 0).UTC()

func newService(repo Repository, posts PostTotals, users UserCounter) *Service {
	s := NewService(repo, posts, users, nil)
	s.clock = func() time.Time { return now }
	return s
}

func seededRepo() *MemoryRepo {
	return NewMemoryRepo(&Stats{ID: "stats-1", TotalEarnings: 4385, LastUpdated: now.Add(-time.Hour)})
}

func TestService_GetWithoutRow(t *testing.T) {
	_, err := newService(NewMemoryRepo(nil), nil, nil).Get(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateIsPartial(t *testing.T) {
	svc := newService(seededRepo(), nil, nil)

	posts := 3
	got, err := svc.Update(context.Background(), Patch{TotalPosts: &posts})
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalPosts)
	assert.InDelta(t, 4385.0, got.TotalEarnings, 0.001)
	assert.Equal(t, now, got.LastUpdated)

	stored, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestService_UpdateRejectsNegatives(t *testing.T) {
	svc := newService(seededRepo(), nil, nil)
	neg := -1
	_, err := svc.Update(context.Background(), Patch{TotalUsers: &neg})
	fields, ok := utils.ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "total_users")
}

func TestService_UpdateWithoutRow(t *testing.T) {
	svc := newService(NewMemoryRepo(nil), nil, nil)
	_, err := svc.Update(context.Background(), Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Recalculate(t *testing.T) {
	svc := newService(seededRepo(), fakeTotals{totals: blog.Totals{Posts: 6, Views: 5120}}, fakeUsers{n: 4})

	got, err := svc.Recalculate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, got.TotalPosts)
	assert.Equal(t, int64(5120), got.TotalViews)
	assert.Equal(t, 4, got.TotalUsers)
	assert.InDelta(t, 4385.0, got.TotalEarnings, 0.001)
}

func TestService_RecalculateUserCountFallback(t *testing.T) {
	cases := []struct {
		name  string
		users UserCounter
	}{
		{"count fails", fakeUsers{err: errors.New("permission denied")}},
		{"zero users", fakeUsers{n: 0}},
		{"no counter", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(seededRepo(), fakeTotals{}, tc.users)
			got, err := svc.Recalculate(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, got.TotalUsers)
		})
	}
}

func TestService_RecalculatePropagatesPostErrors(t *testing.T) {
	boom := errors.New("relation blog_posts does not exist")
	svc := newService(seededRepo(), fakeTotals{err: boom}, fakeUsers{n: 2})

	_, err := svc.Recalculate(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestService_ConcurrentPartialUpdatesKeepEveryField(t *testing.T) {
	repo := seededRepo()
	svc := newService(repo, nil, nil)

	posts, views, users := 7, int64(900), 3
	patches := []Patch{{TotalPosts: &posts}, {TotalViews: &views}, {TotalUsers: &users}}

	var wg sync.WaitGroup
	for _, p := range patches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(context.Background(), p)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalPosts)
	assert.Equal(t, int64(900), got.TotalViews)
	assert.Equal(t, 3, got.TotalUsers)
	assert.Equal(t, "stats-1", got.ID)
}
