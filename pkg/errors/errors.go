package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed        = errors.New("malformed token")
	ErrBadSignature     = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrSessionRevoked   = errors.New("invalid token, please login again")
	ErrSchemeMismatch   = errors.New("invalid authentication scheme")
	ErrNoCredentials    = errors.New("authorization header missing")
	ErrTimeout          = errors.New("upstream service timed out")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstreamResponse = errors.New("unexpected upstream response")
	ErrNotConfigured    = errors.New("operation is not configured")
	ErrInvalidTokenKind = fmt.Errorf("%w: unexpected token type", ErrMalformed)
)

// CollaboratorError carries a non-2xx answer from the identity or
// notification service so it can be forwarded to the caller unchanged.
type CollaboratorError struct {
	Service     string
	Status      int
	Body        []byte
	ContentType string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Service, e.Status)
}

// Kind maps an error onto the stable identifier used in error responses.
func Kind(err error) string {
	var collab *CollaboratorError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &collab):
		return "collaborator_failure"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrSchemeMismatch):
		return "scheme_mismatch"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNoCredentials):
		return "unauthenticated"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUpstreamResponse):
		return "bad_gateway"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "internal"
	}
}
