package pipeline

import (
	"context"
	"errors"
	"time"
)

// sleeper lets tests replace the backoff wait.
type sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executeWithRetry dispatches the descriptor, retrying transport-level
// failures with exponential backoff (delay * 2^attempt). HTTP error statuses
// are returned as-is and never retried here; timeouts abort the attempt and
// are not retried either.
func (c *Client) executeWithRetry(ctx context.Context, desc *Descriptor) (*Response, error) {
	retries := desc.Config.Retries
	delay := desc.Config.RetryDelay
	if delay <= 0 {
		delay = c.defaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := delay * (1 << (attempt - 1))
			c.logger.Debug("retrying request",
				"endpoint", desc.Endpoint,
				"attempt", attempt,
				"backoff", backoff,
			)
			if c.metrics != nil {
				c.metrics.RecordRetry(desc.Endpoint)
			}
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		res, err := c.executeOnce(ctx, desc)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// executeOnce runs a single dispatch under its own timeout.
func (c *Client) executeOnce(ctx context.Context, desc *Descriptor) (*Response, error) {
	timeout := desc.Config.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.transport.Execute(attemptCtx, desc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, timeoutFault(desc, timeout)
		}
		return nil, err
	}
	return res, nil
}

// isRetryable reports whether an execution error is a transport-level
// failure worth retrying. Faults (timeouts, offline, statuses) are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !isFault(err)
}
