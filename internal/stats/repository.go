package stats

import (
	"context"
	"database/sql"
	"errors"

	"affiliate-blog/pkg/utils"
)

// Repository stores the dashboard stats row. When several rows exist the most
// recently updated one is authoritative.
type Repository interface {
	Get(ctx context.Context) (Stats, error)
	// Update reads the row, applies fn and writes the result atomically.
	Update(ctx context.Context, fn func(Stats) Stats) (Stats, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectStats = `
	SELECT id, total_posts, total_views, total_users, total_earnings, last_updated
	FROM user_stats
	ORDER BY last_updated DESC, id
	LIMIT 1
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(row rowScanner) (Stats, error) {
	var s Stats
	err := row.Scan(&s.ID, &s.TotalPosts, &s.TotalViews, &s.TotalUsers, &s.TotalEarnings, &s.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepository) Get(ctx context.Context) (Stats, error) {
	return scanStats(r.db.QueryRowContext(ctx, selectStats))
}

// Update holds a FOR UPDATE lock on the row from read to write.
func (r *PostgresRepository) Update(ctx context.Context, fn func(Stats) Stats) (Stats, error) {
	var next Stats
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanStats(tx.QueryRowContext(ctx, selectStats+" FOR UPDATE"))
		if err != nil {
			return err
		}

		next = fn(cur)
		next.ID = cur.ID
		_, err = tx.ExecContext(ctx, `
			UPDATE user_stats
			SET total_posts = $2, total_views = $3, total_users = $4, total_earnings = $5, last_updated = $6
			WHERE id = $1
		`, next.ID, next.TotalPosts, next.TotalViews, next.TotalUsers, next.TotalEarnings, next.LastUpdated)
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	return next, nil
}
