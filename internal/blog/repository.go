package blog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]Post, error)
	Get(ctx context.Context, id string) (Post, error)
	GetBySlug(ctx context.Context, slug string) (Post, error)
	Insert(ctx context.Context, p Post) error
	Update(ctx context.Context, p Post) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int64, error)
	Totals(ctx context.Context) (Totals, error)
}

const postColumns = `id, title, slug, content, status, category, author, date, views, user_id, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (Post, error) {
	var (
		p                         Post
		content, category, author sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Slug, &content, &p.Status, &category, &author, &p.Date, &p.Views, &p.UserID, &p.UpdatedAt); err != nil {
		return Post{}, err
	}
	p.Content = content.String
	p.Category = category.String
	p.Author = author.String
	return p, nil
}

// likePattern escapes LIKE metacharacters so the term matches literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Post, error) {
	term := strings.TrimSpace(f.Term)
	pattern := ""
	if term != "" {
		pattern = likePattern(term)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM blog_posts
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR title ILIKE $2 OR author ILIKE $2 OR category ILIKE $2)
		ORDER BY date DESC, id
	`, string(f.Status), pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) Insert(ctx context.Context, p Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blog_posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Title, p.Slug, p.Content, string(p.Status), p.Category, p.Author, p.Date, p.Views, p.UserID, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *PostgresRepository) Update(ctx context.Context, p Post) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blog_posts
		SET title = $2, slug = $3, content = $4, status = $5, category = $6, author = $7, updated_at = $8
		WHERE id = $1
	`, p.ID, p.Title, p.Slug, p.Content, string(p.Status), p.Category, p.Author, p.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx, `UPDATE blog_posts SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return views, err
}

func (r *PostgresRepository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(views), 0) FROM blog_posts`).Scan(&t.Posts, &t.Views)
	return t, err
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlugTaken
	}
	return err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
