package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	mu      sync.Mutex
	calls   int
	refresh func(ctx context.Context, refreshToken string) (*Bundle, error)
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*Bundle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.refresh(ctx, refreshToken)
}

func (f *fakeAuth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestManager(t *testing.T, clk clock.Clock, auth Authenticator, opts ...Option) *Manager {
	t.Helper()
	sealer, err := secstore.NewAESGCMSealer("token-test-secret")
	require.NoError(t, err)
	store := secstore.NewInMemoryStore(
		secstore.WithMemorySealer(sealer),
		secstore.WithMemoryClock(clk),
	)
	opts = append([]Option{WithClock(clk)}, opts...)
	m, err := New(store, auth, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func signedJWT(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	raw, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return raw
}

func TestNew_RequiresDependencies(t *testing.T) {
	auth := &fakeAuth{}

	_, err := New(nil, auth)
	assert.EqualError(t, err, "store is required")

	sealer, err := secstore.NewAESGCMSealer("x")
	require.NoError(t, err)
	store := secstore.NewInMemoryStore(secstore.WithMemorySealer(sealer))
	_, err = New(store, nil)
	assert.EqualError(t, err, "authenticator is required")
}

func TestSetTokens_GetTokensRoundTrip(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})
	ctx := context.Background()

	bundle := &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}
	require.NoError(t, m.SetTokens(ctx, bundle))

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.Equal(t, "user-1", got.UserID)
}

func TestSetTokens_RejectsEmptyAndExpiredBundles(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})
	ctx := context.Background()

	err := m.SetTokens(ctx, nil)
	assert.True(t, faults.HasCode(err, faults.CodeValidation))

	err = m.SetTokens(ctx, &Bundle{RefreshToken: "r"})
	assert.True(t, faults.HasCode(err, faults.CodeValidation))

	err = m.SetTokens(ctx, &Bundle{
		AccessToken: "a",
		ExpiresAt:   testEpoch.Add(-time.Minute).UnixMilli(),
		UserID:      "user-1",
	})
	assert.True(t, faults.HasCode(err, faults.CodeValidation))
}

func TestSetTokens_RecoversExpiryAndUserFromJWTClaims(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})
	ctx := context.Background()

	exp := testEpoch.Add(time.Hour)
	bundle := &Bundle{AccessToken: signedJWT(t, "user-from-jwt", exp)}
	require.NoError(t, m.SetTokens(ctx, bundle))

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-from-jwt", got.UserID)
	assert.Equal(t, exp.UnixMilli(), got.ExpiresAt)
}

func TestGetTokens_ExpiredBundleClearedOnRead(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{}, WithRefreshThreshold(time.Millisecond))
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken: "access-1",
		ExpiresAt:   testEpoch.Add(time.Minute).UnixMilli(),
		UserID:      "user-1",
	}))

	// The scheduled refresh fires during this advance and fails quietly
	// (fakeAuth has no refresh token to work with); the read afterwards must
	// still report no usable tokens.
	clk.Advance(2 * time.Minute)

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, m.IsTokenExpired(ctx))
}

func TestAuthHeaders(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})
	ctx := context.Background()

	headers, err := m.AuthHeaders(ctx)
	require.NoError(t, err)
	assert.Empty(t, headers)

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken: "access-1",
		ExpiresAt:   testEpoch.Add(time.Hour).UnixMilli(),
		UserID:      "user-1",
	}))

	headers, err = m.AuthHeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", headers["Authorization"])
}

func TestActiveUserID(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})
	ctx := context.Background()

	assert.Empty(t, m.ActiveUserID(ctx))

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken: "access-1",
		ExpiresAt:   testEpoch.Add(time.Hour).UnixMilli(),
		UserID:      "user-42",
	}))
	assert.Equal(t, "user-42", m.ActiveUserID(ctx))
}

func TestScheduledRefresh_FiresAtExpiryMinusThreshold(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	auth := &fakeAuth{}
	auth.refresh = func(_ context.Context, refreshToken string) (*Bundle, error) {
		assert.Equal(t, "refresh-1", refreshToken)
		return &Bundle{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    clk.Now().Add(time.Hour).UnixMilli(),
			UserID:       "user-1",
		}, nil
	}
	m := newTestManager(t, clk, auth, WithRefreshThreshold(500*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Second).UnixMilli(),
		UserID:       "user-1",
	}))

	// Just before expiresAt - threshold nothing happens.
	clk.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, auth.callCount())

	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, auth.callCount())

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
}

func TestSetTokens_ReplacesScheduledRefreshTimer(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	auth := &fakeAuth{refresh: func(context.Context, string) (*Bundle, error) {
		return nil, errors.New("should not be called")
	}}
	m := newTestManager(t, clk, auth, WithRefreshThreshold(500*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Second).UnixMilli(),
		UserID:       "user-1",
	}))
	// Re-setting pushes the refresh point out; the old timer must not fire.
	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1b",
		RefreshToken: "refresh-1b",
		ExpiresAt:    testEpoch.Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}))

	clk.Advance(time.Second)
	assert.Equal(t, 0, auth.callCount())
}

func TestRefresh_FailureClearsTokensAndNotifies(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	auth := &fakeAuth{refresh: func(context.Context, string) (*Bundle, error) {
		return nil, errors.New("refresh token revoked")
	}}
	expired := false
	m := newTestManager(t, clk, auth, WithOnExpired(func() { expired = true }))
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}))

	_, err := m.Refresh(ctx)
	assert.True(t, faults.HasCode(err, faults.CodeTokenRefreshError))
	assert.True(t, expired)

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRefresh_WithoutTokensFails(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	m := newTestManager(t, clk, &fakeAuth{})

	_, err := m.Refresh(context.Background())
	assert.True(t, faults.HasCode(err, faults.CodeTokenRefreshError))
}

func TestValidate(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	auth := &fakeAuth{}
	auth.refresh = func(context.Context, string) (*Bundle, error) {
		return &Bundle{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    clk.Now().Add(time.Hour).UnixMilli(),
			UserID:       "user-1",
		}, nil
	}
	m := newTestManager(t, clk, auth, WithRefreshThreshold(5*time.Minute))
	ctx := context.Background()

	// No tokens at all.
	assert.False(t, m.Validate(ctx))

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}))

	// Plenty of lifetime left: valid without touching the authenticator.
	assert.True(t, m.Validate(ctx))
	assert.Equal(t, 0, auth.callCount())

	// Inside the refresh threshold: Validate refreshes and reports success.
	clk.Advance(56 * time.Minute)
	assert.True(t, m.Validate(ctx))
	assert.Equal(t, 1, auth.callCount())
}

func TestRefresh_ConcurrentCallersShareOneFlight(t *testing.T) {
	release := make(chan struct{})
	auth := &fakeAuth{}
	auth.refresh = func(context.Context, string) (*Bundle, error) {
		<-release
		return &Bundle{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
			UserID:       "user-1",
		}, nil
	}
	m := newTestManager(t, clock.NewSystem(), auth)
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}))

	const callers = 5
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle, err := m.Refresh(ctx)
			if assert.NoError(t, err) {
				results <- bundle.AccessToken
			}
		}()
	}

	// Give every caller time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	assert.Equal(t, 1, auth.callCount())
	for token := range results {
		assert.Equal(t, "access-2", token)
	}
}

func TestClearTokens_RemovesBundleAndCancelsTimer(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	auth := &fakeAuth{refresh: func(context.Context, string) (*Bundle, error) {
		return nil, errors.New("should not be called")
	}}
	m := newTestManager(t, clk, auth, WithRefreshThreshold(time.Minute))
	ctx := context.Background()

	require.NoError(t, m.SetTokens(ctx, &Bundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    testEpoch.Add(time.Hour).UnixMilli(),
		UserID:       "user-1",
	}))
	require.NoError(t, m.ClearTokens(ctx))

	got, err := m.GetTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	clk.Advance(2 * time.Hour)
	assert.Equal(t, 0, auth.callCount())
}
