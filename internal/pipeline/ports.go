package pipeline

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"net/http"

	"aegis/internal/ratelimit"
	"aegis/internal/securecodec"
	"aegis/internal/token"
)

// Response is the transport-level result of one dispatch.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Transport executes a single HTTP exchange. Implementations must return an
// error only for transport-level failures; HTTP error statuses come back as
// a Response.
type Transport interface {
	Execute(ctx context.Context, desc *Descriptor) (*Response, error)
}

// Connectivity probes whether the network is reachable at all.
type Connectivity interface {
	IsOnline(ctx context.Context) bool
}

// TokenSource supplies auth headers and the single-flight refresh used on
// 401 responses. Implemented by token.Manager.
type TokenSource interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
	Refresh(ctx context.Context) (*token.Bundle, error)
	ActiveUserID(ctx context.Context) string
}

// RateGate is the client-side limiter consulted before dispatch.
// Implemented by ratelimit.Limiter.
type RateGate interface {
	Check(ctx context.Context, endpoint, identity string) (*ratelimit.Result, error)
}

// Codec performs payload encryption and request signing. Implemented by
// securecodec.Codec.
type Codec interface {
	EncryptBytes(plaintext []byte) (*securecodec.Envelope, error)
	DecryptResponse(env *securecodec.Envelope) ([]byte, error)
	EncryptSensitiveFields(body []byte, fields []string) ([]byte, error)
	DecryptSensitiveFields(body []byte, fields []string) ([]byte, error)
	SignRequest(method, url string, body []byte) (*securecodec.Signature, error)
}

// SessionRecorder receives activity pings on successful calls and supplies
// the CSRF token for mutating requests. Implemented by session.Guard.
type SessionRecorder interface {
	UpdateActivity(ctx context.Context) error
	CSRFToken() string
}
