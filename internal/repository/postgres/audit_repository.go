package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const Schema = `
CREATE TABLE IF NOT EXISTS auth_events (
	id          BIGSERIAL PRIMARY KEY,
	event_type  TEXT        NOT NULL,
	user_id     TEXT        NOT NULL,
	session_id  TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	UNIQUE (event_type, user_id, session_id, occurred_at)
)`

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create auth_events table: %w", err)
	}
	return nil
}

// Create stores the event and sets its ID. A redelivered event that is
// already stored is accepted without a new row.
func (r *AuditRepository) Create(ctx context.Context, event *models.AuthEvent) error {
	defer observability.ObserveRepository("audit.create")()

	if event == nil {
		return fmt.Errorf("auth event is nil")
	}
	if event.Type == "" || event.Subject == "" {
		return fmt.Errorf("event_type and user_id are required")
	}

	query := `
	INSERT INTO auth_events (event_type, user_id, session_id, occurred_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		string(event.Type),
		event.Subject,
		event.SessionID,
		event.OccurredAt,
	).Scan(&event.ID)

	var pqErr *pq.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		observability.RepositoryCalls.WithLabelValues("audit.create", "duplicate").Inc()
		return nil
	case err != nil:
		observability.RepositoryCalls.WithLabelValues("audit.create", "error").Inc()
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	observability.RepositoryCalls.WithLabelValues("audit.create", "ok").Inc()
	return nil
}
