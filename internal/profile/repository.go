package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"affiliate-blog/internal/authz"
)

var ErrNotFound = errors.New("profile: not found")

type Repository interface {
	// GetRole returns an error wrapping authz.ErrRoleNotFound when no record exists.
	GetRole(ctx context.Context, subjectID string) (string, error)
	Get(ctx context.Context, subjectID string) (Profile, error)
	Upsert(ctx context.Context, p Profile) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetRole(ctx context.Context, subjectID string) (string, error) {
	var role sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id = $1`, subjectID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("profile %s: %w", subjectID, authz.ErrRoleNotFound)
	}
	if err != nil {
		return "", err
	}
	return role.String, nil
}

func (r *PostgresRepository) Get(ctx context.Context, subjectID string) (Profile, error) {
	var (
		p        Profile
		role     sql.NullString
		fullName sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, role, full_name, updated_at
		FROM profiles
		WHERE id = $1
	`, subjectID).Scan(&p.ID, &role, &fullName, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.Role = role.String
	p.FullName = fullName.String
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, role, full_name, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    full_name = EXCLUDED.full_name,
		    updated_at = EXCLUDED.updated_at
	`, p.ID, p.Role, nullIfEmpty(p.FullName), p.UpdatedAt)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
