package pipeline

import (
	"net/http"
	"time"
)

// NoRetries requests a single dispatch attempt for a call even when the
// client carries a positive retry default.
const NoRetries = -1

// Config is the per-request configuration surface.
type Config struct {
	// SkipAuth omits the Authorization header.
	SkipAuth bool
	// SkipRateLimit bypasses the client-side limiter.
	SkipRateLimit bool
	// SkipCSRF opts a mutating request out of the CSRF header.
	SkipCSRF bool
	// AllowOffline skips the connectivity gate.
	AllowOffline bool
	// Timeout bounds each dispatch attempt. Zero uses the client default.
	Timeout time.Duration
	// Retries is how many times a transport-level failure is retried.
	// HTTP error statuses are never retried through this path. Zero uses
	// the client default; NoRetries disables retries for this call.
	Retries int
	// RetryDelay is the base backoff delay, doubled per attempt.
	RetryDelay time.Duration
	Headers    map[string]string
	// Encrypt wraps the whole body in an encrypted envelope.
	Encrypt bool
	// Sign attaches HMAC signature headers.
	Sign bool
	// SensitiveFields encrypts individual JSON fields by gjson path.
	SensitiveFields []string
}

// Descriptor is one outbound request. It is constructed per call and treated
// as immutable once dispatch begins; interceptors return a modified copy.
type Descriptor struct {
	Method string
	// Endpoint is the path the caller asked for, used for rate limiting.
	Endpoint string
	// URL is the absolute URL dispatched to the transport.
	URL     string
	Headers map[string]string
	Body    []byte
	Config  Config
}

// clone returns a deep copy for interceptors to modify.
func (d *Descriptor) clone() *Descriptor {
	dup := *d
	dup.Headers = make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		dup.Headers[k] = v
	}
	dup.Body = make([]byte, len(d.Body))
	copy(dup.Body, d.Body)
	return &dup
}

// mutating reports whether the method changes server state.
func (d *Descriptor) mutating() bool {
	switch d.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
