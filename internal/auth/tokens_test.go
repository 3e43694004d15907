package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/apperr"
)

const testSecret = "test-secret-0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestTokens(t *testing.T, opts ...TokenOption) (*TokenService, *MemoryPrincipalStore, *MemoryRefreshTokenStore, *fakeClock, Principal) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	principals := NewMemoryPrincipalStore()
	refresh := NewMemoryRefreshTokenStore()
	hash, err := HashPassword("Hostel2024")
	require.NoError(t, err)
	p := Principal{
		Email:        "Warden@Example.com",
		DisplayName:  "Warden",
		Role:         RoleStaff,
		HomeTenantID: "tenant-7",
		Active:       true,
		PasswordHash: hash,
	}
	require.NoError(t, principals.Create(context.Background(), &p))

	opts = append([]TokenOption{WithClock(clock.Now), WithAccessTTL(1800 * time.Second)}, opts...)
	svc, err := NewTokenService(principals, refresh, testSecret, opts...)
	require.NoError(t, err)
	return svc, principals, refresh, clock, p
}

func TestNewTokenServiceValidation(t *testing.T) {
	_, err := NewTokenService(NewMemoryPrincipalStore(), NewMemoryRefreshTokenStore(), "short")
	require.Error(t, err)
	_, err = NewTokenService(nil, NewMemoryRefreshTokenStore(), testSecret)
	require.Error(t, err)
	_, err = NewTokenService(NewMemoryPrincipalStore(), NewMemoryRefreshTokenStore(), testSecret, WithRememberMultiplier(0))
	require.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, _, _, _, p := newTestTokens(t)
	pair, err := svc.Issue(context.Background(), p, false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.Subject)
	assert.Equal(t, RoleStaff, claims.Role)
	assert.Equal(t, "tenant-7", claims.HomeTenantID)
	assert.Equal(t, "warden@example.com", claims.Email)
	assert.Equal(t, defaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenLifecycle(t *testing.T) {
	svc, _, _, clock, p := newTestTokens(t)
	t0 := clock.Now()
	ctx := context.Background()

	pair, err := svc.Issue(ctx, p, false)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(1800*time.Second), pair.AccessExpiresAt)

	clock.Set(t0.Add(1500 * time.Second))
	_, err = svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	clock.Set(t0.Add(1900 * time.Second))
	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	rotated, err := svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(1900*time.Second+1800*time.Second), rotated.AccessExpiresAt)

	claims, err := svc.VerifyAccess(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.Subject)
	assert.Equal(t, p.Role, claims.Role)
}

func TestRememberExtendsBothTTLs(t *testing.T) {
	svc, _, _, clock, p := newTestTokens(t, WithRefreshTTL(time.Hour), WithRememberMultiplier(3))
	t0 := clock.Now()
	pair, err := svc.Issue(context.Background(), p, true)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*1800*time.Second), pair.AccessExpiresAt)
	assert.Equal(t, t0.Add(3*time.Hour), pair.RefreshExpiresAt)

	rotated, err := svc.Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Hour), rotated.RefreshExpiresAt)
}

func TestVerifyRejectsDefects(t *testing.T) {
	svc, principals, refresh, clock, p := newTestTokens(t)
	pair, err := svc.Issue(context.Background(), p, false)
	require.NoError(t, err)

	other, err := NewTokenService(principals, refresh, "another-secret-abcdefghijkl", WithClock(clock.Now))
	require.NoError(t, err)
	_, err = other.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	foreign, err := NewTokenService(principals, refresh, testSecret, WithClock(clock.Now), WithIssuer("elsewhere"))
	require.NoError(t, err)
	_, err = foreign.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	for _, tok := range []string{"", "garbage", pair.AccessToken + "x"} {
		_, err := svc.VerifyAccess(tok)
		require.ErrorIs(t, err, apperr.ErrInvalidCredential, tok)
	}
}

func TestRevokeThenRotateFails(t *testing.T) {
	svc, _, _, _, p := newTestTokens(t)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, p, false)
	require.NoError(t, err)

	ok, err := svc.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	ok, err = svc.Revoke(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRotateRejectsReuseAndExpiry(t *testing.T) {
	svc, _, _, clock, p := newTestTokens(t, WithRefreshTTL(time.Hour))
	ctx := context.Background()
	pair, err := svc.Issue(ctx, p, false)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	fresh, err := svc.Issue(ctx, p, false)
	require.NoError(t, err)
	clock.Set(clock.Now().Add(time.Hour))
	_, err = svc.Rotate(ctx, fresh.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	_, err = svc.Rotate(ctx, "missing")
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestConcurrentRotateSingleWinner(t *testing.T) {
	svc, _, _, _, p := newTestTokens(t)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, p, false)
	require.NoError(t, err)

	const workers = 16
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		failures atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Rotate(ctx, pair.RefreshToken); err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, apperr.ErrInvalidCredential) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), failures.Load())
}

func TestRevokeAllAndGC(t *testing.T) {
	svc, _, refresh, clock, p := newTestTokens(t, WithRefreshTTL(time.Hour))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, p, false)
		require.NoError(t, err)
	}
	n, err := svc.RevokeAll(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = svc.RevokeAll(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	live, err := svc.Issue(ctx, p, true)
	require.NoError(t, err)
	clock.Set(clock.Now().Add(2 * time.Hour))
	n, err = svc.GCExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = refresh.Find(ctx, live.RefreshToken)
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, principals, _, _, p := newTestTokens(t)
	ctx := context.Background()

	pair, got, err := svc.Login(ctx, "warden@example.com", "Hostel2024", false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Login(ctx, "warden@example.com", "wrong", false)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
	_, _, err = svc.Login(ctx, "nobody@example.com", "Hostel2024", false)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)

	require.NoError(t, principals.Anonymize(ctx, p.ID, time.Now()))
	_, _, err = svc.Login(ctx, "warden@example.com", "Hostel2024", false)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrInvalidCredential)
}
