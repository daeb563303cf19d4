package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Interceptor inspects or rewrites a descriptor before dispatch. Each
// receives a copy and returns the (possibly modified) descriptor to pass on.
type Interceptor func(ctx context.Context, desc *Descriptor) (*Descriptor, error)

// RequestIDInterceptor attaches a unique id header to every request so
// client and server logs can be correlated.
func RequestIDInterceptor() Interceptor {
	return func(_ context.Context, desc *Descriptor) (*Descriptor, error) {
		desc.Headers["X-Request-ID"] = uuid.NewString()
		return desc, nil
	}
}

// LoggingInterceptor logs every outbound request at debug level.
func LoggingInterceptor(logger *slog.Logger) Interceptor {
	return func(ctx context.Context, desc *Descriptor) (*Descriptor, error) {
		logger.DebugContext(ctx, "dispatching request",
			"method", desc.Method,
			"endpoint", desc.Endpoint,
			"body_bytes", len(desc.Body),
		)
		return desc, nil
	}
}

// runInterceptors applies the chain in order on a copy of desc.
func (c *Client) runInterceptors(ctx context.Context, desc *Descriptor) (*Descriptor, error) {
	current := desc.clone()
	for _, interceptor := range c.interceptors {
		next, err := interceptor(ctx, current)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}
