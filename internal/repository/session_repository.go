package repository

import (
	"context"
	"time"
)

// SessionRepository stores one liveness marker per (subject, sessionID).
// Implementations rely on the backend's per-key atomicity and hold no locks.
type SessionRepository interface {
	Put(ctx context.Context, subject, sessionID string, ttl time.Duration) error
	Exists(ctx context.Context, subject, sessionID string) (bool, error)
	// Delete is idempotent.
	Delete(ctx context.Context, subject, sessionID string) error
	// Consume deletes the record and reports whether this call removed it.
	// Of several concurrent callers at most one gets true.
	Consume(ctx context.Context, subject, sessionID string) (bool, error)
}
