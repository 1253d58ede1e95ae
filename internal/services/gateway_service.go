package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks github.com/honeynil/auth-gateway/internal/services IdentityClient,NotificationClient,TokenService

const registrationMessage = "Registration successful. Please check your email to activate your account."

type IdentityClient interface {
	Register(ctx context.Context, req *models.RegisterRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (string, error)
}

type NotificationClient interface {
	NotifyRegistration(ctx context.Context, email string) (json.RawMessage, error)
	NotifyPasswordReset(ctx context.Context, email string) (json.RawMessage, error)
}

// GatewayService implements the user-facing flows on top of the token
// lifecycle and the identity and notification services.
type GatewayService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, identity *models.Identity) error
	ResetPassword(ctx context.Context, email string) (json.RawMessage, error)
}

type gatewayService struct {
	tokens        TokenService
	identity      IdentityClient
	notifications NotificationClient
}

func NewGatewayService(tokens TokenService, identity IdentityClient, notifications NotificationClient) *gatewayService {
	return &gatewayService{
		tokens:        tokens,
		identity:      identity,
		notifications: notifications,
	}
}

// Register is not transactional: when the notification fails the account
// stays created and the notification error is returned.
func (s *gatewayService) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResult, error) {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "Register")
	defer span.End()
	logger := observability.Logger(ctx)

	if err := validateCredentials(req.Email, req.Password); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	if err := s.identity.Register(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity register failed")
		logger.Warn("account registration failed", "email", req.Email, "error", err)
		return nil, err
	}

	info, err := s.notifications.NotifyRegistration(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration notification failed")
		logger.Error("registration notification failed", "email", req.Email, "error", err)
		return nil, err
	}

	logger.Info("user registered", "email", req.Email)
	return &models.RegisterResult{UserInfo: info, Message: registrationMessage}, nil
}

func (s *gatewayService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenPair, error) {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "Login")
	defer span.End()

	if err := validateCredentials(req.Email, req.Password); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	subject, err := s.identity.Login(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity login failed")
		observability.Logger(ctx).Warn("login failed", "email", req.Email, "error", err)
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuance failed")
		return nil, err
	}
	observability.Logger(ctx).Info("user logged in", "user_id", subject)
	return pair, nil
}

func (s *gatewayService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: token is required", pkgerrors.ErrMalformed)
	}
	return s.tokens.Rotate(ctx, refreshToken)
}

// Logout revokes the session the access token was issued with; access and
// refresh tokens of one pair share the session id.
func (s *gatewayService) Logout(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return pkgerrors.ErrNoCredentials
	}
	return s.tokens.Revoke(ctx, identity.Subject, identity.SessionID)
}

func (s *gatewayService) ResetPassword(ctx context.Context, email string) (json.RawMessage, error) {
	ctx, span := otel.Tracer("auth-gateway").Start(ctx, "ResetPassword")
	defer span.End()

	if err := validateEmail(email); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}
	info, err := s.notifications.NotifyPasswordReset(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset notification failed")
		observability.Logger(ctx).Warn("password reset notification failed", "email", email, "error", err)
		return nil, err
	}
	return info, nil
}

func validateCredentials(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q is not a valid email address", pkgerrors.ErrInvalidInput, email)
	}
	return nil
}
