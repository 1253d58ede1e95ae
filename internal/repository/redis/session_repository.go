package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/infrastructure/redis"
)

type SessionRepository struct {
	client redis.RedisClient
}

func NewSessionRepository(client redis.RedisClient) *SessionRepository {
	return &SessionRepository{client: client}
}

// SessionKey is the storage key for a session record.
func SessionKey(subject, sessionID string) string {
	return fmt.Sprintf("user_%s || %s", subject, sessionID)
}

func (r *SessionRepository) Put(ctx context.Context, subject, sessionID string, ttl time.Duration) error {
	defer observability.ObserveRepository("session.put")()
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if err := r.client.Set(ctx, SessionKey(subject, sessionID), sessionID, ttl); err != nil {
		observability.RepositoryCalls.WithLabelValues("session.put", "error").Inc()
		return fmt.Errorf("failed to store session: %w", err)
	}
	observability.RepositoryCalls.WithLabelValues("session.put", "ok").Inc()
	return nil
}

func (r *SessionRepository) Exists(ctx context.Context, subject, sessionID string) (bool, error) {
	defer observability.ObserveRepository("session.exists")()
	val, err := r.client.Get(ctx, SessionKey(subject, sessionID))
	if err == redis.ErrKeyNotFound {
		observability.RepositoryCalls.WithLabelValues("session.exists", "ok").Inc()
		return false, nil
	}
	if err != nil {
		observability.RepositoryCalls.WithLabelValues("session.exists", "error").Inc()
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	observability.RepositoryCalls.WithLabelValues("session.exists", "ok").Inc()
	return val == sessionID, nil
}

func (r *SessionRepository) Delete(ctx context.Context, subject, sessionID string) error {
	defer observability.ObserveRepository("session.delete")()
	if err := r.client.Del(ctx, SessionKey(subject, sessionID)); err != nil {
		observability.RepositoryCalls.WithLabelValues("session.delete", "error").Inc()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	observability.RepositoryCalls.WithLabelValues("session.delete", "ok").Inc()
	return nil
}

func (r *SessionRepository) Consume(ctx context.Context, subject, sessionID string) (bool, error) {
	defer observability.ObserveRepository("session.consume")()
	ok, err := r.client.CompareAndDelete(ctx, SessionKey(subject, sessionID), sessionID)
	if err != nil {
		observability.RepositoryCalls.WithLabelValues("session.consume", "error").Inc()
		return false, fmt.Errorf("failed to consume session: %w", err)
	}
	observability.RepositoryCalls.WithLabelValues("session.consume", "ok").Inc()
	return ok, nil
}
