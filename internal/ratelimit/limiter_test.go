package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/secstore"
	"aegis/pkg/platform/clock"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestLimiter(t *testing.T, clk clock.Clock, rules []Rule) (*Limiter, secstore.Store) {
	t.Helper()
	store := secstore.NewInMemoryStore(secstore.WithMemoryClock(clk))
	limiter, err := New(store, WithClock(clk))
	require.NoError(t, err)
	limiter.Configure(rules)
	return limiter, store
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.EqualError(t, err, "store is required")
}

func TestCheck_NoMatchingRuleAllowsUntracked(t *testing.T) {
	limiter, _ := newTestLimiter(t, clock.NewFake(testEpoch), []Rule{
		{Endpoint: "/api/auth/login", MaxRequests: 5, Window: time.Minute},
	})

	result, err := limiter.Check(context.Background(), "/api/other", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.False(t, result.Matched)
}

func TestCheck_AllowsUpToLimitThenRejects(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/auth/login", MaxRequests: 3, Window: time.Minute, KeyPrefix: "login"},
	})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := limiter.Check(ctx, "/api/auth/login", "user-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 3-i, result.Remaining)
	}

	result, err := limiter.Check(ctx, "/api/auth/login", "user-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.True(t, result.Matched)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 60, result.RetryAfter)
	assert.WithinDuration(t, testEpoch.Add(time.Minute), result.ResetAt, 0)
}

func TestCheck_RejectionDoesNotConsumeTheWindow(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/x", MaxRequests: 1, Window: time.Minute},
	})
	ctx := context.Background()

	_, err := limiter.Check(ctx, "/api/x", "")
	require.NoError(t, err)

	// Hammering a closed window must not push the reset time out.
	first, err := limiter.Check(ctx, "/api/x", "")
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	second, err := limiter.Check(ctx, "/api/x", "")
	require.NoError(t, err)
	assert.Equal(t, first.ResetAt, second.ResetAt)
	assert.Equal(t, 30, second.RetryAfter)
}

func TestCheck_WindowResetsAfterElapse(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/auth/login", MaxRequests: 2, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "/api/auth/login", "user-1")
		require.NoError(t, err)
	}
	rejected, err := limiter.Check(ctx, "/api/auth/login", "user-1")
	require.NoError(t, err)
	require.False(t, rejected.Allowed)

	clk.Advance(time.Minute)
	result, err := limiter.Check(ctx, "/api/auth/login", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
	assert.WithinDuration(t, testEpoch.Add(2*time.Minute), result.ResetAt, 0)
}

func TestCheck_IdentitiesHaveSeparateCounters(t *testing.T) {
	limiter, _ := newTestLimiter(t, clock.NewFake(testEpoch), []Rule{
		{Endpoint: "/api/x", MaxRequests: 1, Window: time.Minute},
	})
	ctx := context.Background()

	first, err := limiter.Check(ctx, "/api/x", "user-a")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := limiter.Check(ctx, "/api/x", "user-a")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := limiter.Check(ctx, "/api/x", "user-b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// Anonymous callers get their own bucket too.
	anon, err := limiter.Check(ctx, "/api/x", "")
	require.NoError(t, err)
	assert.True(t, anon.Allowed)
}

func TestCheck_WildcardRuleMatches(t *testing.T) {
	limiter, _ := newTestLimiter(t, clock.NewFake(testEpoch), []Rule{
		{Endpoint: "/api/reports/*", MaxRequests: 1, Window: time.Minute},
	})
	ctx := context.Background()

	result, err := limiter.Check(ctx, "/api/reports/daily", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Matched)

	result, err = limiter.Check(ctx, "/api/reports/daily", "user-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestCheck_FirstMatchingRuleWins(t *testing.T) {
	// The broad rule comes first, so it applies even though the later rule
	// is more specific. Configuration order is the contract.
	limiter, _ := newTestLimiter(t, clock.NewFake(testEpoch), []Rule{
		{Endpoint: "/api/auth/*", MaxRequests: 10, Window: time.Minute},
		{Endpoint: "/api/auth/login", MaxRequests: 2, Window: time.Minute},
	})

	result, err := limiter.Check(context.Background(), "/api/auth/login", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, result.Limit)
}

func TestCheck_CountersSurviveLimiterRestart(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	rules := []Rule{{Endpoint: "/api/x", MaxRequests: 2, Window: time.Hour}}
	limiter, store := newTestLimiter(t, clk, rules)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "/api/x", "user-1")
		require.NoError(t, err)
	}

	// A fresh limiter over the same store picks up the persisted counter.
	restarted, err := New(store, WithClock(clk))
	require.NoError(t, err)
	restarted.Configure(rules)

	result, err := restarted.Check(ctx, "/api/x", "user-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRemaining(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/x", MaxRequests: 3, Window: time.Minute},
	})
	ctx := context.Background()

	assert.Nil(t, limiter.Remaining(ctx, "/api/unmatched", "user-1"))

	remaining := limiter.Remaining(ctx, "/api/x", "user-1")
	require.NotNil(t, remaining)
	assert.Equal(t, 3, *remaining)

	_, err := limiter.Check(ctx, "/api/x", "user-1")
	require.NoError(t, err)
	remaining = limiter.Remaining(ctx, "/api/x", "user-1")
	require.NotNil(t, remaining)
	assert.Equal(t, 2, *remaining)

	// Remaining is a read, not a consumption.
	again := limiter.Remaining(ctx, "/api/x", "user-1")
	require.NotNil(t, again)
	assert.Equal(t, 2, *again)
}

func TestResetTime(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/x", MaxRequests: 3, Window: time.Minute},
	})
	ctx := context.Background()

	assert.Nil(t, limiter.ResetTime(ctx, "/api/x", "user-1"))

	_, err := limiter.Check(ctx, "/api/x", "user-1")
	require.NoError(t, err)

	resetAt := limiter.ResetTime(ctx, "/api/x", "user-1")
	require.NotNil(t, resetAt)
	assert.WithinDuration(t, testEpoch.Add(time.Minute), *resetAt, 0)

	clk.Advance(time.Minute)
	assert.Nil(t, limiter.ResetTime(ctx, "/api/x", "user-1"))
}

func TestReset_ClearsAllCounters(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/x", MaxRequests: 1, Window: time.Hour},
	})
	ctx := context.Background()

	_, err := limiter.Check(ctx, "/api/x", "user-1")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx))

	result, err := limiter.Check(ctx, "/api/x", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestResetEntry_ClearsOneCounter(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/x", MaxRequests: 1, Window: time.Hour},
	})
	ctx := context.Background()

	_, err := limiter.Check(ctx, "/api/x", "user-a")
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "/api/x", "user-b")
	require.NoError(t, err)

	require.NoError(t, limiter.ResetEntry(ctx, "/api/x", "user-a"))

	a, err := limiter.Check(ctx, "/api/x", "user-a")
	require.NoError(t, err)
	assert.True(t, a.Allowed)

	b, err := limiter.Check(ctx, "/api/x", "user-b")
	require.NoError(t, err)
	assert.False(t, b.Allowed)
}

func TestPurgeExpired(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/short", MaxRequests: 5, Window: time.Minute},
		{Endpoint: "/api/long", MaxRequests: 5, Window: time.Hour},
	})
	ctx := context.Background()

	_, err := limiter.Check(ctx, "/api/short", "user-1")
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "/api/long", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, limiter.PurgeExpired())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, limiter.PurgeExpired())
	assert.Equal(t, 0, limiter.PurgeExpired())
}

func TestLoginScenario_FivePerFifteenMinutes(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	limiter, _ := newTestLimiter(t, clk, []Rule{
		{Endpoint: "/api/auth/login", MaxRequests: 5, Window: 15 * time.Minute, KeyPrefix: "login"},
	})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result, err := limiter.Check(ctx, "/api/auth/login", "")
		require.NoError(t, err)
		require.True(t, result.Allowed, "attempt %d", i)
	}

	result, err := limiter.Check(ctx, "/api/auth/login", "")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 15*60, result.RetryAfter)

	clk.Advance(15 * time.Minute)
	result, err = limiter.Check(ctx, "/api/auth/login", "")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRuleMatches(t *testing.T) {
	assert.True(t, Rule{Endpoint: "/api/login"}.Matches("/api/login"))
	assert.False(t, Rule{Endpoint: "/api/login"}.Matches("/api/login/extra"))
	assert.True(t, Rule{Endpoint: "/api/*"}.Matches("/api/login"))
	assert.False(t, Rule{Endpoint: "/api/*"}.Matches("/api/auth/login"))
	assert.True(t, Rule{Endpoint: "/api/*/daily"}.Matches("/api/reports/daily"))
}

func TestEntryKey_SanitizesAndDefaults(t *testing.T) {
	rule := Rule{Endpoint: "/api/auth/login", KeyPrefix: "login"}
	assert.Equal(t, "rate_limit_login__api_auth_login_user-1", entryKey(rule, "/api/auth/login", "user-1"))
	assert.Equal(t, "rate_limit_login__api_auth_login_anonymous", entryKey(rule, "/api/auth/login", ""))
}
