package affiliate

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	// List orders by name. An empty status lists every program.
	List(ctx context.Context, status Status) ([]Program, error)
	Get(ctx context.Context, id string) (Program, error)
	Insert(ctx context.Context, p Program) error
	Update(ctx context.Context, p Program) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

const programColumns = `id, name, description, category, commission, cookie_duration, payment_threshold, status, website, logo, rating, user_id, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(s rowScanner) (Program, error) {
	var (
		p                                           Program
		desc, cat, comm, cookie, thresh, site, logo sql.NullString
		rating                                      sql.NullFloat64
	)
	err := s.Scan(&p.ID, &p.Name, &desc, &cat, &comm, &cookie, &thresh, &p.Status, &site, &logo, &rating, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Program{}, err
	}
	p.Description = desc.String
	p.Category = cat.String
	p.Commission = comm.String
	p.CookieDuration = cookie.String
	p.PaymentThreshold = thresh.String
	p.Website = site.String
	p.Logo = logo.String
	if rating.Valid {
		r := rating.Float64
		p.Rating = &r
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, status Status) ([]Program, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+programColumns+`
		FROM affiliate_programs
		WHERE ($1 = '' OR status = $1)
		ORDER BY name, id
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Program, 0)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM affiliate_programs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) Insert(ctx context.Context, p Program) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affiliate_programs (`+programColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.Name, p.Description, p.Category, p.Commission, p.CookieDuration, p.PaymentThreshold,
		string(p.Status), p.Website, p.Logo, p.Rating, p.UserID, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, p Program) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE affiliate_programs
		SET name = $2, description = $3, category = $4, commission = $5, cookie_duration = $6,
		    payment_threshold = $7, status = $8, website = $9, logo = $10, rating = $11, updated_at = $12
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Category, p.Commission, p.CookieDuration, p.PaymentThreshold,
		string(p.Status), p.Website, p.Logo, p.Rating, p.UpdatedAt)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM affiliate_programs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM affiliate_programs`).Scan(&n)
	return n, err
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
