// Package pipeline composes the token manager, rate limiter, security codec,
// and a pluggable transport into the single request entry point used by all
// outbound calls.
//
// Per-call order: auth headers, connectivity gate, rate-limit gate, CSRF,
// interceptors, payload encryption and signing, throttled dispatch with
// retry-on-transport-failure, then a single 401-refresh-and-retry. Every
// request, response, and error is reported to the telemetry sink; telemetry
// is never a source of failure for the call itself.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aegis/internal/securecodec"
	"aegis/internal/telemetry"
	"aegis/pkg/faults"
)

// Wire headers the pipeline attaches.
const (
	HeaderEncrypted     = "X-Aegis-Encrypted"
	HeaderSignature     = "X-Aegis-Signature"
	HeaderSignTimestamp = "X-Aegis-Timestamp"
	HeaderSignNonce     = "X-Aegis-Nonce"
	HeaderCSRF          = "X-CSRF-Token"

	encryptedVersion = "v1"
)

// Client is the request pipeline. Construct once at the composition root.
type Client struct {
	baseURL      string
	transport    Transport
	tokens       TokenSource
	limiter      RateGate
	codec        Codec
	connectivity Connectivity
	session      SessionRecorder
	sink         telemetry.Sink
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	interceptors []Interceptor
	throttle     *throttle
	sleep        sleeper

	defaultTimeout    time.Duration
	defaultRetries    int
	defaultRetryDelay time.Duration
}

// Option configures a Client instance.
type Option func(*Client)

// WithConnectivity sets the connectivity probe. Without one the client
// assumes it is online.
func WithConnectivity(probe Connectivity) Option {
	return func(c *Client) {
		c.connectivity = probe
	}
}

// WithCodec enables payload encryption and request signing.
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		c.codec = codec
	}
}

// WithSession wires the session guard for activity pings and CSRF headers.
func WithSession(session SessionRecorder) Option {
	return func(c *Client) {
		c.session = session
	}
}

// WithTelemetry sets the fire-and-forget observability sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *Client) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithInterceptors appends request interceptors, run in order.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithGlobalThrottle caps outbound requests per second across all endpoints.
func WithGlobalThrottle(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.throttle = newThrottle(rps)
		}
	}
}

// WithDefaults overrides the per-request defaults.
func WithDefaults(timeout time.Duration, retries int, retryDelay time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.defaultTimeout = timeout
		}
		if retries >= 0 {
			c.defaultRetries = retries
		}
		if retryDelay > 0 {
			c.defaultRetryDelay = retryDelay
		}
	}
}

// New creates the pipeline client. Transport, token source, and rate gate
// are required; everything else has working defaults.
func New(baseURL string, transport Transport, tokens TokenSource, limiter RateGate, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	if limiter == nil {
		return nil, errors.New("rate gate is required")
	}
	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		transport:         transport,
		tokens:            tokens,
		limiter:           limiter,
		sink:              telemetry.Nop{},
		logger:            slog.Default(),
		tracer:            otel.Tracer("aegis/pipeline"),
		sleep:             defaultSleeper,
		defaultTimeout:    30 * time.Second,
		defaultRetries:    0,
		defaultRetryDelay: time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, cfg *Config) (*Response, error) {
	return c.Do(ctx, "GET", endpoint, nil, cfg)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, endpoint string, body any, cfg *Config) (*Response, error) {
	return c.Do(ctx, "POST", endpoint, body, cfg)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, endpoint string, body any, cfg *Config) (*Response, error) {
	return c.Do(ctx, "PUT", endpoint, body, cfg)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, cfg *Config) (*Response, error) {
	return c.Do(ctx, "PATCH", endpoint, body, cfg)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, cfg *Config) (*Response, error) {
	return c.Do(ctx, "DELETE", endpoint, nil, cfg)
}

// Do runs the full pipeline for one call and returns the decoded response.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, cfg *Config) (*Response, error) {
	start := time.Now()
	desc, err := c.buildDescriptor(method, endpoint, body, cfg)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "pipeline.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("aegis.endpoint", endpoint),
	))
	defer span.End()

	c.breadcrumb(ctx, "http", "request", map[string]any{
		"method":   method,
		"endpoint": endpoint,
	})

	res, err := c.run(ctx, desc)

	elapsed := time.Since(start).Seconds()
	if err != nil {
		c.reportFailure(ctx, span, desc, err, elapsed)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", res.Status))
	if c.metrics != nil {
		c.metrics.RecordRequest(method, statusClass(res.Status), elapsed)
	}
	c.breadcrumb(ctx, "http", "response", map[string]any{
		"method":   method,
		"endpoint": endpoint,
		"status":   res.Status,
	})
	if c.session != nil {
		if err := c.session.UpdateActivity(ctx); err != nil {
			c.logger.Debug("activity ping skipped", "error", err)
		}
	}
	return res, nil
}

// run executes the gates, dispatch, and response handling for one call.
func (c *Client) run(ctx context.Context, desc *Descriptor) (*Response, error) {
	if err := c.applyAuth(ctx, desc); err != nil {
		return nil, err
	}

	if !desc.Config.AllowOffline && c.connectivity != nil && !c.connectivity.IsOnline(ctx) {
		return nil, faults.New(faults.CodeNetworkOffline, "connectivity probe reports offline")
	}

	if !desc.Config.SkipRateLimit {
		result, err := c.limiter.Check(ctx, desc.Endpoint, c.tokens.ActiveUserID(ctx))
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return nil, faults.RateLimited(result.RetryAfter)
		}
	}

	if desc.mutating() && !desc.Config.SkipCSRF && c.session != nil {
		if csrf := c.session.CSRFToken(); csrf != "" {
			desc.Headers[HeaderCSRF] = csrf
		}
	}

	desc, err := c.runInterceptors(ctx, desc)
	if err != nil {
		return nil, err
	}

	if err := c.applyBodyProtection(desc); err != nil {
		return nil, err
	}

	if err := c.throttle.wait(ctx); err != nil {
		return nil, faults.Wrap(err, faults.CodeRequestTimeout, "throttle wait aborted")
	}

	res, err := c.executeWithRetry(ctx, desc)
	if err != nil {
		return nil, c.asFault(err, desc)
	}

	return c.handleResponse(ctx, desc, res)
}

// handleResponse decrypts, classifies status, and performs the single
// 401-refresh-and-retry.
func (c *Client) handleResponse(ctx context.Context, desc *Descriptor, res *Response) (*Response, error) {
	if res.Status == 401 && !desc.Config.SkipAuth {
		return c.refreshAndRetry(ctx, desc)
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, faults.FromStatus(res.Status)
	}
	return c.decodeResponse(desc, res)
}

// refreshAndRetry refreshes tokens and re-dispatches the original descriptor
// exactly once. A second 401 or a failed refresh surfaces AUTH_FAILED with
// no third attempt.
func (c *Client) refreshAndRetry(ctx context.Context, desc *Descriptor) (*Response, error) {
	if c.metrics != nil {
		c.metrics.RecordAuthRetry()
	}
	if _, err := c.tokens.Refresh(ctx); err != nil {
		// Surface auth_failed regardless of the refresh error's own code:
		// the caller must re-authenticate either way.
		fault := faults.New(faults.CodeAuthFailed, "")
		fault.Err = fmt.Errorf("token refresh after 401 failed: %w", err)
		return nil, fault
	}

	retry := desc.clone()
	headers, err := c.tokens.AuthHeaders(ctx)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeAuthFailed, "could not rebuild auth headers")
	}
	for k, v := range headers {
		retry.Headers[k] = v
	}

	res, err := c.executeWithRetry(ctx, retry)
	if err != nil {
		return nil, c.asFault(err, retry)
	}
	if res.Status == 401 {
		return nil, faults.FromStatus(401)
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, faults.FromStatus(res.Status)
	}
	return c.decodeResponse(retry, res)
}

// decodeResponse reverses envelope and sensitive-field encryption.
func (c *Client) decodeResponse(desc *Descriptor, res *Response) (*Response, error) {
	if res.Headers.Get(HeaderEncrypted) == encryptedVersion {
		if c.codec == nil {
			return nil, faults.New(faults.CodeDecryptionError, "encrypted response but no codec configured")
		}
		var env securecodec.Envelope
		if err := json.Unmarshal(res.Body, &env); err != nil {
			return nil, faults.Wrap(err, faults.CodeDecryptionError, "malformed encrypted response")
		}
		plaintext, err := c.codec.DecryptResponse(&env)
		if err != nil {
			return nil, err
		}
		res.Body = plaintext
	}
	if len(desc.Config.SensitiveFields) > 0 && c.codec != nil && len(res.Body) > 0 {
		decrypted, err := c.codec.DecryptSensitiveFields(res.Body, desc.Config.SensitiveFields)
		if err != nil {
			return nil, err
		}
		res.Body = decrypted
	}
	return res, nil
}

// applyAuth merges the Authorization header unless the call opts out.
func (c *Client) applyAuth(ctx context.Context, desc *Descriptor) error {
	if desc.Config.SkipAuth {
		return nil
	}
	headers, err := c.tokens.AuthHeaders(ctx)
	if err != nil {
		return faults.Wrap(err, faults.CodeAuthFailed, "could not build auth headers")
	}
	for k, v := range headers {
		if _, exists := desc.Headers[k]; !exists {
			desc.Headers[k] = v
		}
	}
	return nil
}

// applyBodyProtection encrypts sensitive fields, wraps the body in an
// envelope, and signs the request, in that order.
func (c *Client) applyBodyProtection(desc *Descriptor) error {
	cfg := desc.Config
	needsCodec := cfg.Encrypt || cfg.Sign || len(cfg.SensitiveFields) > 0
	if !needsCodec {
		return nil
	}
	if c.codec == nil {
		return faults.New(faults.CodeEncryptionError, "request needs codec but none configured")
	}

	if len(cfg.SensitiveFields) > 0 && len(desc.Body) > 0 {
		protected, err := c.codec.EncryptSensitiveFields(desc.Body, cfg.SensitiveFields)
		if err != nil {
			return err
		}
		desc.Body = protected
	}

	if cfg.Encrypt && len(desc.Body) > 0 {
		env, err := c.codec.EncryptBytes(desc.Body)
		if err != nil {
			return err
		}
		wrapped, err := json.Marshal(env)
		if err != nil {
			return faults.Wrap(err, faults.CodeEncryptionError, "could not encode envelope")
		}
		desc.Body = wrapped
		desc.Headers[HeaderEncrypted] = encryptedVersion
	}

	if cfg.Sign {
		sig, err := c.codec.SignRequest(desc.Method, desc.URL, desc.Body)
		if err != nil {
			return err
		}
		desc.Headers[HeaderSignature] = sig.Value
		desc.Headers[HeaderSignTimestamp] = strconv.FormatInt(sig.Timestamp, 10)
		desc.Headers[HeaderSignNonce] = sig.Nonce
	}
	return nil
}

func (c *Client) buildDescriptor(method, endpoint string, body any, cfg *Config) (*Descriptor, error) {
	if endpoint == "" || !strings.HasPrefix(endpoint, "/") {
		return nil, faults.New(faults.CodeValidation, "endpoint must be an absolute path")
	}
	config := Config{}
	if cfg != nil {
		config = *cfg
	}
	if config.Retries == 0 {
		config.Retries = c.defaultRetries
	} else if config.Retries < 0 {
		config.Retries = 0
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	desc := &Descriptor{
		Method:   method,
		Endpoint: endpoint,
		URL:      c.baseURL + endpoint,
		Headers:  make(map[string]string, len(config.Headers)+4),
		Body:     payload,
		Config:   config,
	}
	for k, v := range config.Headers {
		desc.Headers[k] = v
	}
	return desc, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, faults.Wrap(err, faults.CodeValidation, "could not serialize request body")
		}
		return payload, nil
	}
}

// reportFailure records a failed call everywhere it needs to be visible.
func (c *Client) reportFailure(ctx context.Context, span trace.Span, desc *Descriptor, err error, elapsed float64) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fault := faults.As(err)
	code := string(faults.CodeInternal)
	if fault != nil {
		code = string(fault.Code)
	}
	if c.metrics != nil {
		c.metrics.RecordFailure(code)
		c.metrics.RecordRequest(desc.Method, "error", elapsed)
	}
	c.captureException(ctx, err, map[string]any{
		"method":   desc.Method,
		"endpoint": desc.Endpoint,
		"code":     code,
	})
	c.logger.Warn("request failed",
		"method", desc.Method,
		"endpoint", desc.Endpoint,
		"code", code,
		"error", err,
	)
}

// asFault normalizes transport errors into the fault taxonomy.
func (c *Client) asFault(err error, desc *Descriptor) error {
	if isFault(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutFault(desc, desc.Config.Timeout)
	}
	if errors.Is(err, context.Canceled) {
		return faults.Wrap(err, faults.CodeRequestTimeout, "request cancelled")
	}
	return faults.Wrap(err, faults.CodeAPIError, "transport failure after retries")
}

// breadcrumb reports to the sink, never letting it break the call.
func (c *Client) breadcrumb(ctx context.Context, category, message string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("telemetry sink panicked", "panic", r)
		}
	}()
	c.sink.AddBreadcrumb(ctx, telemetry.Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (c *Client) captureException(ctx context.Context, err error, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("telemetry sink panicked", "panic", r)
		}
	}()
	c.sink.CaptureException(ctx, err, data)
}

func isFault(err error) bool {
	return faults.As(err) != nil
}

func timeoutFault(desc *Descriptor, timeout time.Duration) error {
	return faults.New(faults.CodeRequestTimeout,
		fmt.Sprintf("%s %s exceeded %s", desc.Method, desc.Endpoint, timeout))
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
