package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/honeynil/auth-gateway/internal/models"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	codec, err := NewCodec(CodecConfig{
		Secret:          "secret",
		Algorithm:       "HS256",
		AccessLifetime:  time.Minute,
		RefreshLifetime: time.Hour,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

func TestCodec_IssueDecode(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	for _, kind := range []models.TokenKind{models.TokenKindAccess, models.TokenKindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			token, issued, err := codec.Issue(kind, "u1", "sid-1")
			require.NoError(t, err)
			assert.Equal(t, clock.t.Add(codec.Lifetime(kind)), issued.ExpiresAt)

			decoded, err := codec.Decode(token, kind)
			require.NoError(t, err)
			assert.Equal(t, issued, decoded)
		})
	}
}

func TestCodec_ExpiryBoundaryIsInclusive(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	token, claims, err := codec.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)

	clock.t = claims.ExpiresAt.Add(-time.Second)
	_, err = codec.Decode(token, models.TokenKindAccess)
	assert.NoError(t, err)

	clock.t = claims.ExpiresAt
	_, err = codec.Decode(token, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)

	clock.t = claims.ExpiresAt.Add(time.Hour)
	_, err = codec.Decode(token, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)
}

func TestCodec_SignatureBitFlipIsBadSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	token, _, err := codec.Issue(models.TokenKindRefresh, "u1", "sid-1")
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(token[dot+1:])
	require.NoError(t, err)

	for i := 0; i < len(sig)*8; i++ {
		flipped := append([]byte(nil), sig...)
		flipped[i/8] ^= 1 << (i % 8)
		tampered := token[:dot+1] + base64.RawURLEncoding.EncodeToString(flipped)

		_, err := codec.Decode(tampered, models.TokenKindRefresh)
		require.ErrorIs(t, err, pkgerrors.ErrBadSignature, "bit %d", i)
		require.NotErrorIs(t, err, pkgerrors.ErrMalformed, "bit %d", i)
	}
}

func TestCodec_SignatureCharacterBitFlipIsBadSignature(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})

	for n := 0; n < 25; n++ {
		token, _, err := codec.Issue(models.TokenKindRefresh, "u1", fmt.Sprintf("sid-%d", n))
		require.NoError(t, err)
		dot := strings.LastIndex(token, ".")

		for i := dot + 1; i < len(token); i++ {
			for bit := 0; bit < 8; bit++ {
				b := []byte(token)
				b[i] ^= 1 << bit
				tampered := string(b)

				_, err := codec.Decode(tampered, models.TokenKindRefresh)
				require.ErrorIs(t, err, pkgerrors.ErrBadSignature, "char %d bit %d: %q", i, bit, tampered[dot:])
				require.NotErrorIs(t, err, pkgerrors.ErrMalformed, "char %d bit %d", i, bit)
			}
		}
	}
}

func TestCodec_ExtraSegmentAfterSignatureIsBadSignature(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})
	token, _, err := codec.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	_, err = codec.Decode(token[:dot+4]+"."+token[dot+5:], models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)

	_, err = codec.Decode(token+".extra", models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)

	// A broken payload is still malformed, whatever follows it.
	parts := strings.SplitN(token, ".", 3)
	_, err = codec.Decode(parts[0]+".!!."+parts[2]+".x", models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrMalformed)
	assert.NotErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_SignatureCharacterTamperingIsBadSignature(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})
	token, _, err := codec.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)

	// '!' is outside the base64url alphabet.
	tampered := token[:len(token)-1] + "!"
	_, err = codec.Decode(tampered, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_ExpiredAndTamperedIsBadSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	token, claims, err := codec.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)

	clock.t = claims.ExpiresAt.Add(time.Minute)
	_, err = codec.Decode(token+"x", models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_WrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	other, err := NewCodec(CodecConfig{
		Secret:          "another-secret",
		AccessLifetime:  time.Minute,
		RefreshLifetime: time.Hour,
	}, WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := other.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)

	_, err = codec.Decode(token, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})

	claims := tokenClaims{
		UserID:    "u1",
		TokenType: models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "sid-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(none, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(codec.keys[models.TokenKindAccess])
	require.NoError(t, err)
	_, err = codec.Decode(hs512, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_KindMismatch(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})

	access, _, err := codec.Issue(models.TokenKindAccess, "u1", "sid-1")
	require.NoError(t, err)
	_, err = codec.Decode(access, models.TokenKindRefresh)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTokenKind)

	refresh, _, err := codec.Issue(models.TokenKindRefresh, "u1", "sid-1")
	require.NoError(t, err)
	_, err = codec.Decode(refresh, models.TokenKindAccess)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTokenKind)
}

func TestCodec_KindKeysAreSeparate(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})

	// An access token relabelled as refresh must not verify with the refresh key.
	forged, err := codec.Encode(&models.TokenClaims{
		Subject:   "u1",
		SessionID: "sid-1",
		Kind:      models.TokenKindAccess,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	parts := strings.Split(forged, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	relabelled := strings.Replace(string(payload), `"token_type":"access"`, `"token_type":"refresh"`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(relabelled))

	_, err = codec.Decode(strings.Join(parts, "."), models.TokenKindRefresh)
	assert.ErrorIs(t, err, pkgerrors.ErrBadSignature)
}

func TestCodec_Malformed(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})

	for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "!!!.###.$$$"} {
		_, err := codec.Decode(token, models.TokenKindAccess)
		assert.ErrorIs(t, err, pkgerrors.ErrMalformed, "token %q", token)
	}
}

func TestNewCodec_Validation(t *testing.T) {
	_, err := NewCodec(CodecConfig{AccessLifetime: time.Minute, RefreshLifetime: time.Hour})
	assert.Error(t, err)

	_, err = NewCodec(CodecConfig{Secret: "s", Algorithm: "RS256", AccessLifetime: time.Minute, RefreshLifetime: time.Hour})
	assert.Error(t, err)

	_, err = NewCodec(CodecConfig{Secret: "s"})
	assert.Error(t, err)
}
