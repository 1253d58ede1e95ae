package repository

import (
	"context"

	"github.com/honeynil/auth-gateway/internal/models"
)

// AuditRepository is the append-only log of session lifecycle events.
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuthEvent) error
}
