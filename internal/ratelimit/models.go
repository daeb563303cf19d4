package ratelimit

import (
	"path"
	"strings"
	"time"
)

// Rule configures a fixed-window limit for matching endpoints.
// Rules are evaluated in configuration order; the first match wins, even when
// a later rule is more specific.
type Rule struct {
	// Endpoint is an exact path or a pattern with '*' wildcards
	// (path.Match syntax, e.g. "/api/auth/*").
	Endpoint    string
	MaxRequests int
	Window      time.Duration
	// KeyPrefix namespaces the persisted counter. Optional.
	KeyPrefix string
}

// Matches reports whether the rule applies to the endpoint.
func (r Rule) Matches(endpoint string) bool {
	if !strings.Contains(r.Endpoint, "*") {
		return r.Endpoint == endpoint
	}
	ok, err := path.Match(r.Endpoint, endpoint)
	return err == nil && ok
}

// Entry is one fixed-window counter. While now < ResetTime the count only
// grows; once the window elapses the entry is replaced wholesale.
type Entry struct {
	Count int `json:"count"`
	// ResetTime is epoch milliseconds at which the window ends.
	ResetTime int64 `json:"reset_time"`
}

// Result reports the outcome of a single limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is seconds until the window resets; zero when allowed.
	RetryAfter int
	// Matched is false when no rule applied and the request was allowed
	// unconditionally.
	Matched bool
}

const (
	storePrefix       = "rate_limit_"
	anonymousIdentity = "anonymous"
)

// entryKey builds the storage key for a (rule, endpoint, identity) triple.
func entryKey(rule Rule, endpoint, identity string) string {
	if identity == "" {
		identity = anonymousIdentity
	}
	parts := []string{storePrefix + rule.KeyPrefix, sanitizeEndpoint(endpoint), identity}
	return strings.Join(parts, "_")
}

// sanitizeEndpoint flattens a path into a storage-safe token.
func sanitizeEndpoint(endpoint string) string {
	var b strings.Builder
	for _, r := range endpoint {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
