package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeynil/auth-gateway/internal/infrastructure/auth"
	infraredis "github.com/honeynil/auth-gateway/internal/infrastructure/redis"
	"github.com/honeynil/auth-gateway/internal/models"
	redisrepo "github.com/honeynil/auth-gateway/internal/repository/redis"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *models.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

func (p *recordingPublisher) types() []models.AuthEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.AuthEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type lifecycleFixture struct {
	svc       *tokenService
	gate      *auth.Gate
	codec     *auth.Codec
	mr        *miniredis.Miniredis
	clock     *testClock
	publisher *recordingPublisher
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret:          "test-secret",
		Algorithm:       "HS256",
		AccessLifetime:  time.Minute,
		RefreshLifetime: time.Hour,
	}, auth.WithClock(clock.Now))
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := NewTokenService(codec, redisrepo.NewSessionRepository(infraredis.Wrap(rdb)),
		WithEventPublisher(publisher), WithTokenClock(clock.Now))

	return &lifecycleFixture{
		svc:       svc,
		gate:      auth.NewGate(codec, "Token"),
		codec:     codec,
		mr:        mr,
		clock:     clock,
		publisher: publisher,
	}
}

func TestTokenService_IssuePairAuthenticates(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	for _, subject := range []string{"u1", "42", "user@example.com"} {
		pair, err := f.svc.IssuePair(ctx, subject)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.Access)
		assert.NotEmpty(t, pair.Refresh)
		assert.NotEqual(t, pair.Access, pair.Refresh)

		identity, err := f.gate.Authenticate("Token " + pair.Access)
		require.NoError(t, err)
		assert.Equal(t, subject, identity.Subject)

		refresh, err := f.codec.Decode(pair.Refresh, models.TokenKindRefresh)
		require.NoError(t, err)
		assert.Equal(t, identity.SessionID, refresh.SessionID)
		assert.GreaterOrEqual(t, len(refresh.SessionID), 43)

		key := redisrepo.SessionKey(subject, refresh.SessionID)
		val, err := f.mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, refresh.SessionID, val)
		assert.Equal(t, time.Hour, f.mr.TTL(key))
	}
}

func TestTokenService_IssuePairRejectsEmptySubject(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.IssuePair(context.Background(), "")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestTokenService_IssuePairFailsWhenStoreFails(t *testing.T) {
	f := newLifecycleFixture(t)
	f.mr.SetError("ERR injected failure")

	pair, err := f.svc.IssuePair(context.Background(), "u1")
	assert.Error(t, err)
	assert.Nil(t, pair)
}

func TestTokenService_ConcurrentRotateSingleWinner(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	pair, err := f.svc.IssuePair(ctx, "u1")
	require.NoError(t, err)

	const n = 16
	start := make(chan struct{})
	results := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Rotate(ctx, pair.Refresh)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success, revoked := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, pkgerrors.ErrSessionRevoked):
			revoked++
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, revoked)
}

func TestTokenService_RotationInvalidatesPriorRefresh(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssuePair(ctx, "u1")
	require.NoError(t, err)

	second, err := f.svc.Rotate(ctx, first.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.Access, second.Access)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	_, err = f.svc.Rotate(ctx, first.Refresh)
	assert.ErrorIs(t, err, pkgerrors.ErrSessionRevoked)

	// Access tokens are not revoked by rotation.
	identity, err := f.gate.Authenticate("Token " + first.Access)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.Subject)

	third, err := f.svc.Rotate(ctx, second.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, third.Refresh)

	assert.Equal(t, []models.AuthEventType{
		models.EventSessionIssued,
		models.EventSessionRevoked,
		models.EventSessionRotated,
		models.EventSessionReuseRejected,
		models.EventSessionRevoked,
		models.EventSessionRotated,
	}, f.publisher.types())
}

func TestTokenService_RevokeBlocksRefresh(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	pair, err := f.svc.IssuePair(ctx, "u1")
	require.NoError(t, err)
	identity, err := f.gate.Authenticate("Token " + pair.Access)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, identity.Subject, identity.SessionID))
	require.NoError(t, f.svc.Revoke(ctx, identity.Subject, identity.SessionID))

	_, err = f.svc.Rotate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, pkgerrors.ErrSessionRevoked)
}

func TestTokenService_RevokeRequiresIdentifiers(t *testing.T) {
	f := newLifecycleFixture(t)

	assert.ErrorIs(t, f.svc.Revoke(context.Background(), "", "sid"), pkgerrors.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.Revoke(context.Background(), "u1", ""), pkgerrors.ErrInvalidInput)
}

func TestTokenService_RotateRejectsInvalidTokens(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	pair, err := f.svc.IssuePair(ctx, "u1")
	require.NoError(t, err)

	t.Run("AccessTokenIsWrongKind", func(t *testing.T) {
		_, err := f.svc.Rotate(ctx, pair.Access)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTokenKind)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := f.svc.Rotate(ctx, "not-a-token")
		assert.ErrorIs(t, err, pkgerrors.ErrMalformed)
	})

	t.Run("ExpiredDoesNotConsumeSession", func(t *testing.T) {
		saved := f.clock.Now()
		f.clock.Set(saved.Add(time.Hour))
		_, err := f.svc.Rotate(ctx, pair.Refresh)
		f.clock.Set(saved)

		assert.ErrorIs(t, err, pkgerrors.ErrExpired)
		assert.NotErrorIs(t, err, pkgerrors.ErrSessionRevoked)

		_, err = f.svc.Rotate(ctx, pair.Refresh)
		assert.NoError(t, err)
	})
}

func TestTokenService_SessionExpiresWithRefreshLifetime(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	pair, err := f.svc.IssuePair(ctx, "u1")
	require.NoError(t, err)

	f.mr.FastForward(time.Hour)
	_, err = f.svc.Rotate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, pkgerrors.ErrSessionRevoked)
}

func TestTokenService_PublishFailureDoesNotFailIssue(t *testing.T) {
	f := newLifecycleFixture(t)
	f.publisher.err = errors.New("broker down")

	pair, err := f.svc.IssuePair(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
}
