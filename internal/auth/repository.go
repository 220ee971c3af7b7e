package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type UserRepository interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Count(ctx context.Context) (int, error)
}

type SessionRepository interface {
	Put(ctx context.Context, rec SessionRecord, ttl time.Duration) error
	Get(ctx context.Context, id string) (SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

const pgUniqueViolation = "23505"

// PostgresUserRepository persists users in the users table.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u User) error {
	meta, err := json.Marshal(orEmpty(u.AppMetadata))
	if err != nil {
		return fmt.Errorf("auth: encode app_metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, app_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, meta, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `
		SELECT id, email, password_hash, app_metadata, created_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getOne(ctx, `
		SELECT id, email, password_hash, app_metadata, created_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, q string, arg string) (User, error) {
	var (
		u    User
		meta []byte
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &meta, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.AppMetadata); err != nil {
			return User{}, fmt.Errorf("auth: decode app_metadata: %w", err)
		}
	}
	return u, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// RedisSessionRepository stores session records as JSON under session:<id>.
type RedisSessionRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSessionRepository(rdb *redis.Client, prefix string) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisSessionRepository) key(id string) string {
	return r.prefix + "session:" + id
}

func (r *RedisSessionRepository) Put(ctx context.Context, rec SessionRecord, ttl time.Duration) error {
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidArgument
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(rec.ID), b, ttl).Err()
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (SessionRecord, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRecord{}, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return SessionRecord{}, fmt.Errorf("auth: decode session %s: %w", id, err)
	}
	return rec, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.key(id)).Err()
}
