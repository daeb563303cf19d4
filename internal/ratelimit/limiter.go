// Package ratelimit enforces per-endpoint, per-identity fixed-window request
// limits on the client side, so the app throttles itself before the backend
// has to.
//
// Counters live in an in-memory mirror backed by the secure store; the
// mirror is authoritative within a process and the persisted copy lets
// limits survive restarts. Check-and-increment happens under one mutex, so
// concurrent checks cannot under-count the way a read-then-write against the
// store alone would.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

// Limiter evaluates configured rules against outbound requests.
type Limiter struct {
	store   secstore.Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics

	mu    sync.Mutex
	rules []Rule
	cache map[string]*Entry
}

// Option configures a Limiter instance.
type Option func(*Limiter)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the clock used for window arithmetic.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a limiter backed by the given store. Rules are installed via
// Configure.
func New(store secstore.Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	l := &Limiter{
		store:  store,
		clock:  clock.NewSystem(),
		logger: slog.Default(),
		cache:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Configure replaces the rule list wholesale. First-match-in-list-order wins.
func (l *Limiter) Configure(rules []Rule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = make([]Rule, len(rules))
	copy(l.rules, rules)
}

// Check evaluates the first matching rule for endpoint and identity,
// consuming one request on success. When no rule matches the request is
// allowed unconditionally and storage is not touched.
func (l *Limiter) Check(ctx context.Context, endpoint, identity string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.matchLocked(endpoint)
	if !ok {
		return &Result{Allowed: true, Matched: false}, nil
	}

	now := l.clock.Now()
	key := entryKey(rule, endpoint, identity)
	entry := l.readEntryLocked(ctx, key)

	if entry == nil || now.UnixMilli() >= entry.ResetTime {
		entry = &Entry{Count: 1, ResetTime: now.Add(rule.Window).UnixMilli()}
		l.writeEntryLocked(ctx, key, entry, rule.Window)
		return l.allowResult(rule, entry), nil
	}

	if entry.Count >= rule.MaxRequests {
		resetAt := time.UnixMilli(entry.ResetTime)
		retryAfter := int(resetAt.Sub(now).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}
		if l.metrics != nil {
			l.metrics.RecordRejection(rule.Endpoint)
		}
		l.logger.Warn("rate limit exceeded",
			"endpoint", endpoint,
			"identity", identityOrAnonymous(identity),
			"limit", rule.MaxRequests,
			"retry_after_seconds", retryAfter,
		)
		return &Result{
			Allowed:    false,
			Limit:      rule.MaxRequests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
			Matched:    true,
		}, nil
	}

	entry.Count++
	remaining := time.Duration(entry.ResetTime-now.UnixMilli()) * time.Millisecond
	l.writeEntryLocked(ctx, key, entry, remaining)
	return l.allowResult(rule, entry), nil
}

// Remaining returns max(0, limit - count) for the first matching rule, the
// rule's full limit when no entry exists yet, or nil when no rule matches.
func (l *Limiter) Remaining(ctx context.Context, endpoint, identity string) *int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.matchLocked(endpoint)
	if !ok {
		return nil
	}
	remaining := rule.MaxRequests
	entry := l.readEntryLocked(ctx, entryKey(rule, endpoint, identity))
	if entry != nil && l.clock.Now().UnixMilli() < entry.ResetTime {
		remaining = rule.MaxRequests - entry.Count
		if remaining < 0 {
			remaining = 0
		}
	}
	return &remaining
}

// ResetTime returns when the current window for the endpoint/identity ends,
// or nil when no rule matches or no window is active.
func (l *Limiter) ResetTime(ctx context.Context, endpoint, identity string) *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.matchLocked(endpoint)
	if !ok {
		return nil
	}
	entry := l.readEntryLocked(ctx, entryKey(rule, endpoint, identity))
	if entry == nil || l.clock.Now().UnixMilli() >= entry.ResetTime {
		return nil
	}
	t := time.UnixMilli(entry.ResetTime)
	return &t
}

// Reset clears every counter, both cached and persisted.
func (l *Limiter) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Entry)
	if _, err := l.store.RemoveByPrefix(ctx, storePrefix); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not reset rate limit entries")
	}
	return nil
}

// ResetEntry removes the single counter for endpoint and identity.
func (l *Limiter) ResetEntry(ctx context.Context, endpoint, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.matchLocked(endpoint)
	if !ok {
		return nil
	}
	key := entryKey(rule, endpoint, identity)
	delete(l.cache, key)
	if err := l.store.Remove(ctx, key); err != nil {
		return faults.Wrap(err, faults.CodeStorageError, "could not reset rate limit entry")
	}
	return nil
}

// PurgeExpired drops expired entries from the in-memory cache only;
// persisted entries rely on their own TTL. Returns how many were purged.
func (l *Limiter) PurgeExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UnixMilli()
	purged := 0
	for key, entry := range l.cache {
		if now >= entry.ResetTime {
			delete(l.cache, key)
			purged++
		}
	}
	return purged
}

func (l *Limiter) matchLocked(endpoint string) (Rule, bool) {
	for _, rule := range l.rules {
		if rule.Matches(endpoint) {
			return rule, true
		}
	}
	return Rule{}, false
}

// readEntryLocked consults the cache first, falling back to the store.
// Store failures degrade to "no entry": the limiter is approximate by
// contract and must not block requests on storage trouble.
func (l *Limiter) readEntryLocked(ctx context.Context, key string) *Entry {
	if entry, ok := l.cache[key]; ok {
		return entry
	}
	payload, err := l.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, secstore.ErrNotFound) {
			l.logger.Warn("could not read rate limit entry", "key", key, "error", err)
		}
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		l.logger.Warn("corrupt rate limit entry dropped", "key", key, "error", err)
		return nil
	}
	l.cache[key] = &entry
	return &entry
}

func (l *Limiter) writeEntryLocked(ctx context.Context, key string, entry *Entry, ttl time.Duration) {
	l.cache[key] = entry
	payload, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("could not serialize rate limit entry", "key", key, "error", err)
		return
	}
	if err := l.store.Set(ctx, key, payload, secstore.Options{TTL: ttl}); err != nil {
		l.logger.Warn("could not persist rate limit entry", "key", key, "error", err)
	}
}

func (l *Limiter) allowResult(rule Rule, entry *Entry) *Result {
	if l.metrics != nil {
		l.metrics.RecordAllowed(rule.Endpoint)
	}
	remaining := rule.MaxRequests - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(entry.ResetTime),
		Matched:   true,
	}
}

func identityOrAnonymous(identity string) string {
	if identity == "" {
		return anonymousIdentity
	}
	return identity
}
