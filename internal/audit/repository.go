package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e Event) error {
	var meta any
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("audit: encode metadata: %w", err)
		}
		meta = string(b)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, actor_subject_id, capability, reason, ip_address, resource, message, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9::jsonb, $10)
	`, e.ID, string(e.Type), e.ActorSubjectID, e.Capability, e.Reason, e.IPAddress, e.Resource, e.Message, meta, e.CreatedAt)
	return err
}
