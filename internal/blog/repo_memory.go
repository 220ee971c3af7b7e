package blog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryRepo struct {
	mu    sync.Mutex
	posts map[string]Post
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{posts: map[string]Post{}} }

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Term))
	out := make([]Post, 0, len(r.posts))
	for _, p := range r.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if term != "" && !matchesTerm(p, term) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesTerm(p Post, term string) bool {
	for _, field := range []string{p.Title, p.Author, p.Category} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) GetBySlug(ctx context.Context, slug string) (Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

func (r *MemoryRepo) slugTakenLocked(slug, exceptID string) bool {
	for _, p := range r.posts {
		if p.Slug == slug && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) Insert(ctx context.Context, p Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTakenLocked(p.Slug, "") {
		return ErrSlugTaken
	}
	r.posts[p.ID] = p
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, p Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[p.ID]
	if !ok {
		return ErrNotFound
	}
	if r.slugTakenLocked(p.Slug, p.ID) {
		return ErrSlugTaken
	}
	p.Date = cur.Date
	p.Views = cur.Views
	p.UserID = cur.UserID
	r.posts[p.ID] = p
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *MemoryRepo) IncrementViews(ctx context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Views++
	r.posts[id] = p
	return p.Views, nil
}

func (r *MemoryRepo) Totals(ctx context.Context) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t Totals
	for _, p := range r.posts {
		t.Posts++
		t.Views += p.Views
	}
	return t, nil
}
