// Package session tracks the singleton client session: start, activity,
// inactivity and absolute timeouts, foreground/background transitions, and
// CSRF token issuance.
//
// State machine: NoSession -> Active (StartSession) -> Active (UpdateActivity
// self-loop) -> Expired -> NoSession. Expiry happens on inactivity timeout,
// absolute-duration timeout, excessive time backgrounded, or explicit
// EndSession.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

const sessionStoreKey = "session_current"

// Guard owns the session lifecycle. All methods are safe for concurrent use.
type Guard struct {
	store  secstore.Store
	clock  clock.Clock
	logger *slog.Logger

	maxDuration   time.Duration
	maxInactivity time.Duration
	warningBefore time.Duration
	// onWarning is the guard's only UI-facing side effect: the app layer
	// prompts the user before the inactivity timeout fires.
	onWarning func(remaining time.Duration)
	// onExpired lets the composition root force the token manager to clear
	// tokens when the session dies.
	onExpired func(reason string)

	mu              sync.Mutex
	session         *Session
	inactivityTimer clock.Timer
	warningTimer    clock.Timer
	closed          bool
}

// Option configures a Guard instance.
type Option func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock overrides the clock used for timers and liveness checks.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		g.clock = c
	}
}

// WithMaxDuration sets the absolute session lifetime.
func WithMaxDuration(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.maxDuration = d
		}
	}
}

// WithMaxInactivity sets the inactivity timeout.
func WithMaxInactivity(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.maxInactivity = d
		}
	}
}

// WithWarningBefore sets how long before the inactivity timeout the warning
// callback fires.
func WithWarningBefore(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.warningBefore = d
		}
	}
}

// WithOnWarning sets the pre-timeout warning callback.
func WithOnWarning(fn func(remaining time.Duration)) Option {
	return func(g *Guard) {
		g.onWarning = fn
	}
}

// WithOnExpired sets the callback invoked when the session expires for any
// reason other than explicit EndSession.
func WithOnExpired(fn func(reason string)) Option {
	return func(g *Guard) {
		g.onExpired = fn
	}
}

// New creates a session guard backed by the given store.
func New(store secstore.Store, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	g := &Guard{
		store:         store,
		clock:         clock.NewSystem(),
		logger:        slog.Default(),
		maxDuration:   24 * time.Hour,
		maxInactivity: 30 * time.Minute,
		warningBefore: 5 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// StartSession creates and persists a new Active session, replacing any
// previous one. The user-agent string, when provided, is parsed into device
// metadata.
func (g *Guard) StartSession(ctx context.Context, userID, deviceID, userAgent string) (*Session, error) {
	if userID == "" {
		return nil, faults.New(faults.CodeValidation, "user id is required")
	}
	csrf, err := newCSRFToken()
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.session = &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		DeviceID:     deviceID,
		StartTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(g.maxDuration),
		IsActive:     true,
		CSRFToken:    csrf,
		Device:       ParseDeviceInfo(userAgent),
	}
	if err := g.persistLocked(ctx); err != nil {
		g.session = nil
		return nil, err
	}
	g.armTimersLocked()
	g.logger.Info("session started", "session_id", g.session.ID, "user_id", userID)
	return g.session.clone(), nil
}

// UpdateActivity records an activity ping, resetting the inactivity clock.
// Returns a session timeout fault when no active session exists or the
// absolute limit has passed.
func (g *Guard) UpdateActivity(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil || !g.session.IsActive {
		return faults.New(faults.CodeSessionTimeout, "no active session")
	}
	now := g.clock.Now()
	if !now.Before(g.session.ExpiresAt) {
		return g.expireLocked(ctx, "absolute_timeout")
	}
	if now.Sub(g.session.LastActivity) >= g.maxInactivity {
		return g.expireLocked(ctx, "inactivity_timeout")
	}

	g.session.LastActivity = now
	if err := g.persistLocked(ctx); err != nil {
		return err
	}
	g.armTimersLocked()
	return nil
}

// EndSession deactivates and removes the session explicitly.
func (g *Guard) EndSession(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.clearTimersLocked()
	if g.session != nil {
		g.logger.Info("session ended", "session_id", g.session.ID)
	}
	g.session = nil
	if err := g.store.Remove(ctx, sessionStoreKey); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not remove session")
	}
	return nil
}

// GetSession returns a copy of the current session, or nil.
func (g *Guard) GetSession() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.clone()
}

// ValidateSession re-derives liveness from persisted state so a restarted
// process can judge whether a stored session is still usable. An unusable
// persisted session is expired as a side effect.
func (g *Guard) ValidateSession(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	sess := g.session
	if sess == nil {
		loaded, err := g.loadLocked(ctx)
		if err != nil || loaded == nil {
			return false
		}
		sess = loaded
		g.session = loaded
	}

	now := g.clock.Now()
	alive := sess.IsActive &&
		now.Before(sess.ExpiresAt) &&
		now.Sub(sess.LastActivity) < g.maxInactivity
	if !alive && sess.IsActive {
		_ = g.expireLocked(ctx, "validation") //nolint:errcheck // expiry fault is the expected outcome here
		return false
	}
	if alive {
		g.armTimersLocked()
	}
	return alive
}

// OnBackground records the transition to background: both timers stop and
// the timestamp is kept for the foreground check.
func (g *Guard) OnBackground(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil || !g.session.IsActive {
		return
	}
	g.clearTimersLocked()
	now := g.clock.Now()
	g.session.BackgroundedAt = &now
	if err := g.persistLocked(ctx); err != nil {
		g.logger.Warn("could not persist backgrounded session", "error", err)
	}
}

// OnForeground handles the return from background. When the time spent
// backgrounded exceeds the inactivity threshold the session expires
// immediately; otherwise activity resumes normally.
func (g *Guard) OnForeground(ctx context.Context) error {
	g.mu.Lock()

	if g.session == nil || !g.session.IsActive {
		g.mu.Unlock()
		return faults.New(faults.CodeSessionTimeout, "no active session")
	}
	backgroundedAt := g.session.BackgroundedAt
	g.session.BackgroundedAt = nil

	if backgroundedAt != nil && g.clock.Now().Sub(*backgroundedAt) >= g.maxInactivity {
		defer g.mu.Unlock()
		return g.expireLocked(ctx, "background_timeout")
	}
	g.mu.Unlock()
	return g.UpdateActivity(ctx)
}

// CSRFToken returns the session's anti-forgery token, or "".
func (g *Guard) CSRFToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil || !g.session.IsActive {
		return ""
	}
	return g.session.CSRFToken
}

// ValidateCSRFToken compares a presented token against the session's in
// constant time.
func (g *Guard) ValidateCSRFToken(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil || !g.session.IsActive || token == "" {
		return false
	}
	return csrfTokensEqual(g.session.CSRFToken, token)
}

// RegenerateCSRFToken replaces the token for sensitive operations.
func (g *Guard) RegenerateCSRFToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session == nil || !g.session.IsActive {
		return "", faults.New(faults.CodeSessionTimeout, "no active session")
	}
	csrf, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	g.session.CSRFToken = csrf
	if err := g.persistLocked(ctx); err != nil {
		return "", err
	}
	return csrf, nil
}

// Close cancels all timers. The guard must not be used afterwards.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.clearTimersLocked()
}

// expireLocked flips the session to Expired, persists the tombstone, and
// notifies the composition root. Always returns a session timeout fault.
func (g *Guard) expireLocked(ctx context.Context, reason string) error {
	g.clearTimersLocked()
	if g.session != nil {
		g.session.IsActive = false
		if err := g.persistLocked(ctx); err != nil {
			g.logger.Warn("could not persist expired session", "error", err)
		}
		g.logger.Info("session expired", "session_id", g.session.ID, "reason", reason)
	}
	if g.onExpired != nil {
		g.onExpired(reason)
	}
	return faults.New(faults.CodeSessionTimeout, "session expired: "+reason)
}

// armTimersLocked clears then re-arms the warning and inactivity timers.
// Re-arming is idempotent; timers never stack.
func (g *Guard) armTimersLocked() {
	g.clearTimersLocked()
	if g.closed || g.session == nil || !g.session.IsActive {
		return
	}

	now := g.clock.Now()
	inactivityDeadline := g.session.LastActivity.Add(g.maxInactivity)
	reason := "inactivity_timeout"
	if !g.session.ExpiresAt.After(inactivityDeadline) {
		inactivityDeadline = g.session.ExpiresAt
		reason = "absolute_timeout"
	}
	untilExpiry := inactivityDeadline.Sub(now)
	if untilExpiry < 0 {
		untilExpiry = 0
	}

	if g.onWarning != nil && untilExpiry > g.warningBefore {
		warnIn := untilExpiry - g.warningBefore
		remaining := g.warningBefore
		g.warningTimer = g.clock.AfterFunc(warnIn, func() {
			g.onWarning(remaining)
		})
	}
	g.inactivityTimer = g.clock.AfterFunc(untilExpiry, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.session == nil || !g.session.IsActive {
			return
		}
		_ = g.expireLocked(context.Background(), reason) //nolint:errcheck // fault is for callers, timer has none
	})
}

func (g *Guard) clearTimersLocked() {
	if g.warningTimer != nil {
		g.warningTimer.Stop()
		g.warningTimer = nil
	}
	if g.inactivityTimer != nil {
		g.inactivityTimer.Stop()
		g.inactivityTimer = nil
	}
}

func (g *Guard) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(g.session)
	if err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not serialize session")
	}
	if err := g.store.Set(ctx, sessionStoreKey, payload, secstore.Options{Encrypted: true}); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not persist session")
	}
	return nil
}

func (g *Guard) loadLocked(ctx context.Context) (*Session, error) {
	payload, err := g.store.Get(ctx, sessionStoreKey)
	if errors.Is(err, secstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not read session")
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, faults.Wrap(err, faults.CodeStorageError, "could not deserialize session")
	}
	return &sess, nil
}
