// Package token owns the access/refresh token pair: persistence, proactive
// refresh scheduling, and auth header construction.
//
// Refresh is serialized: concurrent callers that observe an expiring token
// share a single in-flight refresh operation instead of each minting their
// own, so a fresh bundle can never be overwritten by a stale one.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

const (
	activeUserKey     = "token_active_user"
	bundleKeyPrefix   = "token_bundle_"
	refreshFlightKey  = "refresh"
	defaultRefreshGap = 5 * time.Minute
)

// Authenticator mints a new bundle from a refresh token. It is the external
// auth collaborator; a refresh failure is terminal for the current session.
type Authenticator interface {
	Refresh(ctx context.Context, refreshToken string) (*Bundle, error)
}

// Manager owns the token bundle for the active identity.
type Manager struct {
	store            secstore.Store
	auth             Authenticator
	clock            clock.Clock
	logger           *slog.Logger
	refreshThreshold time.Duration
	onExpired        func()

	mu           sync.Mutex
	refreshTimer clock.Timer
	closed       bool

	flight singleflight.Group
}

// Option configures a Manager instance.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the clock used for expiry checks and refresh timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithRefreshThreshold sets how long before expiry a proactive refresh fires.
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshThreshold = d
		}
	}
}

// WithOnExpired sets the callback invoked when a refresh fails and the
// caller must re-authenticate.
func WithOnExpired(fn func()) Option {
	return func(m *Manager) {
		m.onExpired = fn
	}
}

// New creates a token manager backed by the given store and authenticator.
func New(store secstore.Store, auth Authenticator, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if auth == nil {
		return nil, errors.New("authenticator is required")
	}
	m := &Manager{
		store:            store,
		auth:             auth,
		clock:            clock.NewSystem(),
		logger:           slog.Default(),
		refreshThreshold: defaultRefreshGap,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// SetTokens persists the bundle and (re)schedules the proactive refresh
// timer at expiresAt - refreshThreshold. A bundle without an expiry gets one
// recovered from the access token's JWT claims when possible.
func (m *Manager) SetTokens(ctx context.Context, bundle *Bundle) error {
	if bundle == nil || bundle.AccessToken == "" {
		return faults.New(faults.CodeValidation, "bundle with access token is required")
	}
	if bundle.ExpiresAt == 0 || bundle.UserID == "" {
		exp, sub := claimsFromAccessToken(bundle.AccessToken)
		if bundle.ExpiresAt == 0 {
			bundle.ExpiresAt = exp
		}
		if bundle.UserID == "" {
			bundle.UserID = sub
		}
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not serialize bundle")
	}

	now := m.clock.Now()
	var ttl time.Duration
	if bundle.ExpiresAt > 0 {
		ttl = time.Duration(bundle.ExpiresAt-now.UnixMilli()) * time.Millisecond
		if ttl <= 0 {
			return faults.New(faults.CodeValidation, "bundle is already expired")
		}
	}

	if err := m.store.Set(ctx, bundleKeyPrefix+bundle.UserID, payload, secstore.Options{TTL: ttl, Encrypted: true}); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not persist bundle")
	}
	if err := m.store.Set(ctx, activeUserKey, []byte(bundle.UserID), secstore.Options{}); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not persist active user")
	}

	m.scheduleRefresh(bundle.ExpiresAt)
	return nil
}

// GetTokens returns the current bundle, or nil when none exists or the
// bundle has expired. A stale bundle is cleared as a side effect.
func (m *Manager) GetTokens(ctx context.Context) (*Bundle, error) {
	bundle, err := m.loadBundle(ctx)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, nil
	}
	if bundle.ExpiresAt > 0 && m.clock.Now().UnixMilli() >= bundle.ExpiresAt {
		if err := m.ClearTokens(ctx); err != nil {
			m.logger.Warn("could not clear stale bundle", "error", err)
		}
		return nil, nil
	}
	return bundle, nil
}

// GetAccessToken returns the current access token or "".
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	bundle, err := m.GetTokens(ctx)
	if err != nil || bundle == nil {
		return "", err
	}
	return bundle.AccessToken, nil
}

// AuthHeaders returns the Authorization header for the current token, or an
// empty map when no valid token exists.
func (m *Manager) AuthHeaders(ctx context.Context) (map[string]string, error) {
	accessToken, err := m.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"Authorization": "Bearer " + accessToken}, nil
}

// ActiveUserID returns the user id of the current bundle, or "" when no
// usable token exists. Used to key per-identity rate limits.
func (m *Manager) ActiveUserID(ctx context.Context) string {
	bundle, err := m.GetTokens(ctx)
	if err != nil || bundle == nil {
		return ""
	}
	return bundle.UserID
}

// IsTokenExpired reports whether no usable token exists.
func (m *Manager) IsTokenExpired(ctx context.Context) bool {
	bundle, err := m.GetTokens(ctx)
	return err != nil || bundle == nil
}

// Refresh mints a new bundle using the stored refresh token. Concurrent
// callers share one in-flight refresh. On failure the tokens are cleared and
// the onExpired callback fires; the caller must treat that as
// "re-authenticate", not as retryable.
func (m *Manager) Refresh(ctx context.Context) (*Bundle, error) {
	result, err, _ := m.flight.Do(refreshFlightKey, func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Bundle), nil
}

func (m *Manager) doRefresh(ctx context.Context) (*Bundle, error) {
	bundle, err := m.loadBundle(ctx)
	if err != nil {
		return nil, err
	}
	if bundle == nil || bundle.RefreshToken == "" {
		return nil, faults.New(faults.CodeTokenRefreshError, "no refresh token available")
	}

	fresh, err := m.auth.Refresh(ctx, bundle.RefreshToken)
	if err != nil {
		m.logger.Error("token refresh failed", "user_id", bundle.UserID, "error", err)
		if clearErr := m.ClearTokens(ctx); clearErr != nil {
			m.logger.Warn("could not clear tokens after failed refresh", "error", clearErr)
		}
		if m.onExpired != nil {
			m.onExpired()
		}
		return nil, faults.Wrap(err, faults.CodeTokenRefreshError, "refresh rejected")
	}

	if err := m.SetTokens(ctx, fresh); err != nil {
		return nil, err
	}
	m.logger.Info("token refreshed", "user_id", fresh.UserID)
	return fresh, nil
}

// Validate is the externally facing liveness check: false when no tokens
// exist; when within the refresh threshold it triggers a refresh and returns
// whether that succeeded; otherwise true.
func (m *Manager) Validate(ctx context.Context) bool {
	bundle, err := m.GetTokens(ctx)
	if err != nil || bundle == nil {
		return false
	}
	if bundle.ExpiresAt > 0 {
		untilExpiry := bundle.ExpiresAt - m.clock.Now().UnixMilli()
		if untilExpiry <= m.refreshThreshold.Milliseconds() {
			_, err := m.Refresh(ctx)
			return err == nil
		}
	}
	return true
}

// ClearTokens removes the persisted bundle and cancels the refresh timer.
func (m *Manager) ClearTokens(ctx context.Context) error {
	m.cancelRefreshTimer()

	userID, err := m.store.Get(ctx, activeUserKey)
	if err != nil && !errors.Is(err, secstore.ErrNotFound) {
		return faults.Wrap(err, faults.CodeStorageError, "could not read active user")
	}
	if len(userID) > 0 {
		if err := m.store.Remove(ctx, bundleKeyPrefix+string(userID)); err != nil {
			return faults.Wrap(err, faults.CodeStorageError, "could not remove bundle")
		}
	}
	if err := m.store.Remove(ctx, activeUserKey); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not remove active user")
	}
	return nil
}

func (m *Manager) cancelRefreshTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

// Close cancels the refresh timer. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

func (m *Manager) loadBundle(ctx context.Context) (*Bundle, error) {
	userID, err := m.store.Get(ctx, activeUserKey)
	if errors.Is(err, secstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not read active user")
	}

	payload, err := m.store.Get(ctx, bundleKeyPrefix+string(userID))
	if errors.Is(err, secstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not read bundle")
	}

	var bundle Bundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not deserialize bundle")
	}
	return &bundle, nil
}

// scheduleRefresh arms the proactive refresh timer, clearing any previous
// one first. Re-arming is idempotent.
func (m *Manager) scheduleRefresh(expiresAt int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if m.closed || expiresAt <= 0 {
		return
	}

	fireIn := time.Duration(expiresAt-m.clock.Now().UnixMilli())*time.Millisecond - m.refreshThreshold
	if fireIn < 0 {
		fireIn = 0
	}
	m.refreshTimer = m.clock.AfterFunc(fireIn, func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			m.logger.Warn("scheduled token refresh failed", "error", err)
		}
	})
}
