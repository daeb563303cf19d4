package pipeline

import (
	"context"

	"golang.org/x/time/rate"
)

// throttle smooths outbound bursts across all endpoints. It sits ahead of
// the per-endpoint fixed-window limiter and blocks rather than rejects, so
// bursts are spread out instead of failed.
type throttle struct {
	limiter *rate.Limiter
}

// newThrottle caps outbound requests at rps with a burst of rps (minimum 1).
func newThrottle(rps float64) *throttle {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &throttle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// wait blocks until a slot is available or ctx is done.
func (t *throttle) wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
