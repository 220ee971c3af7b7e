package seed

import (
	"context"
	"testing"
	"time"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedUsers int

func (n fixedUsers) CountUsers(ctx context.Context) (int, error) { return int(n), nil }

type fixture struct {
	seeder   *Seeder
	posts    *blog.Service
	programs *affiliate.Service
	stats    *stats.Service
}

func newFixture() fixture {
	posts := blog.NewService(blog.NewMemoryRepo(), nil, nil)
	programs := affiliate.NewService(affiliate.NewMemoryRepo(), nil, nil)
	st := stats.NewService(stats.NewMemoryRepo(&stats.Stats{ID: "stats-1"}), posts, fixedUsers(2), nil)
	s := New(posts, programs, st, nil)
	s.clock = func() time.Time { return time.Unix(1700000000, 0) }
	return fixture{seeder: s, posts: posts, programs: programs, stats: st}
}

func TestSeed_EmptyDeployment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.seeder.Seed(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 6, res.PostsSeeded)
	assert.Equal(t, 5, res.ProgramsSeeded)
	assert.Zero(t, res.PostsExisting)

	assert.Equal(t, 6, res.Stats.TotalPosts)
	assert.Equal(t, int64(1245+890+756+623), res.Stats.TotalViews)
	assert.Equal(t, 2, res.Stats.TotalUsers)
	assert.InDelta(t, 4385.0, res.Stats.TotalEarnings, 0.001)

	published, err := f.posts.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 4)
	assert.Equal(t, "How to Increase Your Affiliate Marketing Conversions in 2023", published[0].Title)
	assert.Equal(t, "admin-1", published[0].UserID)

	active, err := f.programs.ListActive(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(active))
	for _, p := range active {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Amazon Associates", "CJ Affiliate", "ShareASale"}, names)
}

func TestSeed_SkipsPopulatedTables(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.posts.Create(ctx, "u", blog.PostInput{Title: "Existing", Status: blog.StatusDraft})
	require.NoError(t, err)

	res, err := f.seeder.Seed(ctx, "admin-1")
	require.NoError(t, err)
	assert.Zero(t, res.PostsSeeded)
	assert.Equal(t, 1, res.PostsExisting)
	assert.Equal(t, 5, res.ProgramsSeeded)
	assert.Equal(t, 1, res.Stats.TotalPosts)

	again, err := f.seeder.Seed(ctx, "admin-1")
	require.NoError(t, err)
	assert.Zero(t, again.ProgramsSeeded)
	assert.Equal(t, 5, again.ProgramsExisting)
}

func TestSeed_RequiresUser(t *testing.T) {
	_, err := newFixture().seeder.Seed(context.Background(), "")
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestSeed_MissingStatsRow(t *testing.T) {
	posts := blog.NewService(blog.NewMemoryRepo(), nil, nil)
	programs := affiliate.NewService(affiliate.NewMemoryRepo(), nil, nil)
	st := stats.NewService(stats.NewMemoryRepo(nil), posts, nil, nil)

	_, err := New(posts, programs, st, nil).Seed(context.Background(), "admin-1")
	assert.ErrorIs(t, err, stats.ErrNotFound)
}
