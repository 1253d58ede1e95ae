package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const derivedKeySize = 64

type CodecConfig struct {
	Secret          string
	Algorithm       string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

// Codec signs and verifies access and refresh tokens. Each kind is MACed
// with its own key derived from the shared secret.
type Codec struct {
	method    jwt.SigningMethod
	keys      map[models.TokenKind][]byte
	lifetimes map[models.TokenKind]time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

type CodecOption func(*Codec)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

type tokenClaims struct {
	UserID    string           `json:"user_id"`
	TokenType models.TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret not set")
	}
	if cfg.AccessLifetime <= 0 || cfg.RefreshLifetime <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	c := &Codec{
		method: method,
		keys:   make(map[models.TokenKind][]byte, 2),
		lifetimes: map[models.TokenKind]time.Duration{
			models.TokenKindAccess:  cfg.AccessLifetime,
			models.TokenKindRefresh: cfg.RefreshLifetime,
		},
		now: time.Now,
	}
	for _, kind := range []models.TokenKind{models.TokenKindAccess, models.TokenKindRefresh} {
		key, err := deriveKey([]byte(cfg.Secret), kind)
		if err != nil {
			return nil, err
		}
		c.keys[kind] = key
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

func deriveKey(secret []byte, kind models.TokenKind) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte("auth-gateway/"+string(kind)))
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", kind, err)
	}
	return key, nil
}

// Lifetime reports the configured lifetime for kind.
func (c *Codec) Lifetime(kind models.TokenKind) time.Duration {
	return c.lifetimes[kind]
}

// Issue builds claims for kind stamped with the current time and encodes them.
func (c *Codec) Issue(kind models.TokenKind, subject, sessionID string) (string, *models.TokenClaims, error) {
	lifetime, ok := c.lifetimes[kind]
	if !ok {
		return "", nil, pkgerrors.ErrInvalidTokenKind
	}
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims := &models.TokenClaims{
		Subject:   subject,
		SessionID: sessionID,
		Kind:      kind,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(lifetime),
	}
	token, err := c.Encode(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (c *Codec) Encode(claims *models.TokenClaims) (string, error) {
	key, ok := c.keys[claims.Kind]
	if !ok {
		return "", pkgerrors.ErrInvalidTokenKind
	}
	token := jwt.NewWithClaims(c.method, tokenClaims{
		UserID:    claims.Subject,
		TokenType: claims.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.Kind, err)
	}
	return signed, nil
}

// Decode verifies the signature, then expiry, then that the token is of
// the wanted kind. A token whose expiry equals the current second is expired.
func (c *Codec) Decode(tokenStr string, want models.TokenKind) (*models.TokenClaims, error) {
	claims := &tokenClaims{}
	_, err := c.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		tc, ok := t.Claims.(*tokenClaims)
		if !ok {
			return nil, pkgerrors.ErrMalformed
		}
		key, ok := c.keys[tc.TokenType]
		if !ok {
			return nil, pkgerrors.ErrInvalidTokenKind
		}
		return key, nil
	})
	if err != nil {
		return nil, c.classify(tokenStr, err)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: got %q, want %q", pkgerrors.ErrInvalidTokenKind, claims.TokenType, want)
	}
	if claims.UserID == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing user_id, jti or iat", pkgerrors.ErrMalformed)
	}

	return &models.TokenClaims{
		Subject:   claims.UserID,
		SessionID: claims.ID,
		Kind:      claims.TokenType,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *Codec) classify(tokenStr string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", pkgerrors.ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", pkgerrors.ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		if c.signatureSegmentOnly(tokenStr) {
			return fmt.Errorf("%w: %v", pkgerrors.ErrBadSignature, err)
		}
		return fmt.Errorf("%w: %v", pkgerrors.ErrMalformed, err)
	case errors.Is(err, pkgerrors.ErrInvalidTokenKind):
		return pkgerrors.ErrInvalidTokenKind
	default:
		return fmt.Errorf("%w: %v", pkgerrors.ErrMalformed, err)
	}
}

// signatureSegmentOnly reports whether the header and payload parse cleanly
// while the signature segment does not decode. Everything after the second
// dot is the signature segment, including any further dots.
func (c *Codec) signatureSegmentOnly(tokenStr string) bool {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return false
	}
	if _, err := c.parser.DecodeSegment(parts[2]); err == nil {
		return false
	}
	_, _, err := c.parser.ParseUnverified(parts[0]+"."+parts[1]+".", &tokenClaims{})
	return err == nil
}
