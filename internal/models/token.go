package models

import "time"

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the payload carried inside a signed token. Access and
// refresh tokens of one pair share SessionID.
type TokenClaims struct {
	Subject   string    `json:"user_id"`
	SessionID string    `json:"jti"`
	Kind      TokenKind `json:"token_type"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Identity is what a verified access token tells a handler about its caller.
type Identity struct {
	Subject   string
	SessionID string
	ExpiresAt time.Time
}
