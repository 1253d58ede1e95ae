package auth

import (
	"fmt"
	"strings"

	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

type AccessDecoder interface {
	Decode(token string, want models.TokenKind) (*models.TokenClaims, error)
}

// Gate authenticates the Authorization header of an inbound request.
// Access tokens are checked by signature and expiry only; the session
// store is not consulted.
type Gate struct {
	decoder AccessDecoder
	scheme  string
}

func NewGate(decoder AccessDecoder, scheme string) *Gate {
	return &Gate{decoder: decoder, scheme: scheme}
}

func (g *Gate) Scheme() string {
	return g.scheme
}

// Authenticate returns ErrNoCredentials for an empty header so the caller
// can decide whether anonymous access is fine. Every other failure rejects.
func (g *Gate) Authenticate(header string) (*models.Identity, error) {
	if header == "" {
		return nil, pkgerrors.ErrNoCredentials
	}

	parts := strings.Split(header, " ")
	if parts[0] != g.scheme {
		return nil, pkgerrors.ErrSchemeMismatch
	}
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: authorization header must be %q followed by a token", pkgerrors.ErrMalformed, g.scheme)
	}

	claims, err := g.decoder.Decode(parts[1], models.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	return &models.Identity{
		Subject:   claims.Subject,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}
