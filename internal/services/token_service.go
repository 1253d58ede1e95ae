package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	"github.com/honeynil/auth-gateway/internal/repository"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const sessionIDBytes = 32

// TokenCodec is the signed-token primitive the lifecycle is built on.
type TokenCodec interface {
	Issue(kind models.TokenKind, subject, sessionID string) (string, *models.TokenClaims, error)
	Decode(token string, want models.TokenKind) (*models.TokenClaims, error)
	Lifetime(kind models.TokenKind) time.Duration
}

// EventPublisher receives lifecycle events. Failures are logged and never
// fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.AuthEvent) error
}

type TokenService interface {
	IssuePair(ctx context.Context, subject string) (*models.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Revoke(ctx context.Context, subject, sessionID string) error
}

type tokenService struct {
	codec    TokenCodec
	sessions repository.SessionRepository
	events   EventPublisher
	now      func() time.Time
}

type TokenServiceOption func(*tokenService)

func WithEventPublisher(p EventPublisher) TokenServiceOption {
	return func(s *tokenService) { s.events = p }
}

func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(s *tokenService) { s.now = now }
}

func NewTokenService(codec TokenCodec, sessions repository.SessionRepository, opts ...TokenServiceOption) *tokenService {
	s := &tokenService{
		codec:    codec,
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssuePair mints an access and refresh token sharing a fresh session id.
// The session record is committed before the pair is returned.
func (s *tokenService) IssuePair(ctx context.Context, subject string) (*models.TokenPair, error) {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "IssuePair")
	defer span.End()

	pair, sessionID, err := s.issue(ctx, span, subject)
	if err != nil {
		observability.TokenOperations.WithLabelValues("issue", "error").Inc()
		return nil, err
	}

	observability.TokenOperations.WithLabelValues("issue", "ok").Inc()
	s.publish(ctx, models.EventSessionIssued, subject, sessionID)
	observability.Logger(ctx).Info("session issued", "user_id", subject)
	return pair, nil
}

func (s *tokenService) issue(ctx context.Context, span trace.Span, subject string) (*models.TokenPair, string, error) {
	if subject == "" {
		span.SetStatus(codes.Error, "empty subject")
		return nil, "", fmt.Errorf("%w: subject is required", pkgerrors.ErrInvalidInput)
	}

	sessionID, err := newSessionID()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session id generation failed")
		return nil, "", fmt.Errorf("failed to generate session id: %w", err)
	}

	access, _, err := s.codec.Issue(models.TokenKindAccess, subject, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "access token signing failed")
		return nil, "", err
	}
	refresh, _, err := s.codec.Issue(models.TokenKindRefresh, subject, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh token signing failed")
		return nil, "", err
	}

	if err := s.sessions.Put(ctx, subject, sessionID, s.codec.Lifetime(models.TokenKindRefresh)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session store failed")
		observability.Logger(ctx).Error("failed to store session", "user_id", subject, "error", err)
		return nil, "", err
	}

	span.SetAttributes(attribute.String("user_id", subject))
	return &models.TokenPair{Access: access, Refresh: refresh}, sessionID, nil
}

// Rotate exchanges a refresh token for a new pair. The old session is
// consumed atomically, so a refresh token can succeed at most once even
// when presented concurrently.
func (s *tokenService) Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "Rotate")
	defer span.End()
	logger := observability.Logger(ctx)

	claims, err := s.codec.Decode(refreshToken, models.TokenKindRefresh)
	if err != nil {
		span.SetStatus(codes.Error, "refresh token rejected")
		observability.TokenOperations.WithLabelValues("rotate", pkgerrors.Kind(err)).Inc()
		logger.Warn("refresh token rejected", "kind", pkgerrors.Kind(err), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", claims.Subject))

	consumed, err := s.sessions.Consume(ctx, claims.Subject, claims.SessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		observability.TokenOperations.WithLabelValues("rotate", "error").Inc()
		logger.Error("failed to consume session", "user_id", claims.Subject, "error", err)
		return nil, err
	}
	if !consumed {
		span.SetStatus(codes.Error, "session revoked")
		observability.TokenOperations.WithLabelValues("rotate", "session_revoked").Inc()
		s.publish(ctx, models.EventSessionReuseRejected, claims.Subject, claims.SessionID)
		logger.Warn("refresh token has no live session", "user_id", claims.Subject)
		return nil, pkgerrors.ErrSessionRevoked
	}

	pair, sessionID, err := s.issue(ctx, span, claims.Subject)
	if err != nil {
		observability.TokenOperations.WithLabelValues("rotate", "error").Inc()
		return nil, err
	}

	observability.TokenOperations.WithLabelValues("rotate", "ok").Inc()
	s.publish(ctx, models.EventSessionRevoked, claims.Subject, claims.SessionID)
	s.publish(ctx, models.EventSessionRotated, claims.Subject, sessionID)
	logger.Info("session rotated", "user_id", claims.Subject)
	return pair, nil
}

// Revoke removes the session record. Revoking an absent session succeeds.
func (s *tokenService) Revoke(ctx context.Context, subject, sessionID string) error {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "Revoke")
	defer span.End()

	if subject == "" || sessionID == "" {
		span.SetStatus(codes.Error, "empty identifiers")
		return fmt.Errorf("%w: subject and session id are required", pkgerrors.ErrInvalidInput)
	}
	if err := s.sessions.Delete(ctx, subject, sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session delete failed")
		observability.TokenOperations.WithLabelValues("revoke", "error").Inc()
		return err
	}

	observability.TokenOperations.WithLabelValues("revoke", "ok").Inc()
	s.publish(ctx, models.EventSessionRevoked, subject, sessionID)
	observability.Logger(ctx).Info("session revoked", "user_id", subject)
	return nil
}

func (s *tokenService) publish(ctx context.Context, typ models.AuthEventType, subject, sessionID string) {
	if s.events == nil {
		return
	}
	event := &models.AuthEvent{
		Type:       typ,
		Subject:    subject,
		SessionID:  sessionID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish auth event", "event_type", typ, "user_id", subject, "error", err)
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
