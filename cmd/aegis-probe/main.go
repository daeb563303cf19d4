// Command aegis-probe wires the full client stack against a live backend and
// walks it through login, a few protected calls, and the scripted failure
// endpoints of the lab stub server. It exists to exercise the composition
// root end to end; run lab/stub-api first.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/pipeline"
	"aegis/internal/platform/config"
	"aegis/internal/platform/logger"
	"aegis/internal/ratelimit"
	"aegis/internal/secstore"
	"aegis/internal/securecodec"
	"aegis/internal/session"
	"aegis/internal/telemetry"
	"aegis/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "aegis-probe:", err)
		os.Exit(1)
	}
}

func run() error {
	username := flag.String("user", "probe", "username for the login call")
	password := flag.String("pass", "probe-password", "password for the login call")
	metricsAddr := flag.String("metrics", "", "address to serve /metrics on (empty disables)")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.NewWithOptions(logger.Options{
		Level:    slog.LevelDebug,
		FilePath: cfg.LogFilePath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage and at-rest sealing.
	sealer, err := secstore.NewAESGCMSealer(deviceSecret(cfg))
	if err != nil {
		return err
	}
	store, err := secstore.NewSQLiteStore(cfg.StorePath, secstore.WithSQLiteSealer(sealer))
	if err != nil {
		return err
	}

	// Payload security.
	keyring, err := securecodec.LoadKeyring(ctx, store)
	if err != nil {
		return err
	}
	codec, err := securecodec.NewCodec(keyring, securecodec.WithStalenessWindow(cfg.StalenessWindow))
	if err != nil {
		return err
	}

	// Token lifecycle.
	auth := newAuthClient(cfg.BaseURL)
	tokens, err := token.New(store, auth,
		token.WithLogger(log),
		token.WithRefreshThreshold(cfg.RefreshThreshold),
		token.WithOnExpired(func() {
			log.Warn("token refresh failed, re-authentication required")
		}),
	)
	if err != nil {
		return err
	}
	defer tokens.Close()

	// Session guard; an expired session drops the tokens with it.
	guard, err := session.New(store,
		session.WithLogger(log),
		session.WithMaxDuration(cfg.MaxSessionDuration),
		session.WithMaxInactivity(cfg.MaxInactivity),
		session.WithWarningBefore(cfg.WarningBeforeTimeout),
		session.WithOnWarning(func(remaining time.Duration) {
			log.Warn("session expires soon", "remaining", remaining)
		}),
		session.WithOnExpired(func(reason string) {
			log.Warn("session expired", "reason", reason)
			if err := tokens.ClearTokens(context.Background()); err != nil {
				log.Warn("could not clear tokens after session expiry", "error", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer guard.Close()

	// Rate limiting with background cache sweeping.
	rlMetrics := ratelimit.NewMetrics()
	limiter, err := ratelimit.New(store,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}
	// Wildcards are segment-bound, so the catch-all needs one pattern per
	// path depth.
	limiter.Configure([]ratelimit.Rule{
		{Endpoint: "/api/auth/login", MaxRequests: 5, Window: 15 * time.Minute, KeyPrefix: "login"},
		{Endpoint: "/api/auth/refresh", MaxRequests: 10, Window: 5 * time.Minute, KeyPrefix: "refresh"},
		{Endpoint: "/api/*", MaxRequests: 100, Window: time.Minute, KeyPrefix: "api"},
		{Endpoint: "/api/*/*", MaxRequests: 100, Window: time.Minute, KeyPrefix: "api"},
	})
	sweeper, err := ratelimit.NewSweeper(limiter,
		ratelimit.WithSweepInterval(cfg.SweepInterval),
		ratelimit.WithSweepLogger(log),
		ratelimit.WithSweepMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}
	go func() {
		if err := sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	// The pipeline itself.
	probe, err := newTCPProbe(cfg.BaseURL)
	if err != nil {
		return err
	}
	client, err := pipeline.New(cfg.BaseURL,
		pipeline.NewHTTPTransport(nil),
		tokens,
		limiter,
		pipeline.WithCodec(codec),
		pipeline.WithConnectivity(probe),
		pipeline.WithSession(guard),
		pipeline.WithTelemetry(telemetry.NewSlogSink(log)),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(pipeline.NewMetrics()),
		pipeline.WithInterceptors(pipeline.RequestIDInterceptor(), pipeline.LoggingInterceptor(log)),
		pipeline.WithGlobalThrottle(cfg.GlobalRPS),
		pipeline.WithDefaults(cfg.RequestTimeout, cfg.MaxRetries, cfg.RetryDelay),
	)
	if err != nil {
		return err
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, log)
	}

	return walk(ctx, log, client, auth, tokens, guard, *username, *password)
}

// walk performs the scripted end-to-end sequence.
func walk(ctx context.Context, log *slog.Logger, client *pipeline.Client, auth *authClient,
	tokens *token.Manager, guard *session.Guard, username, password string) error {

	bundle, err := auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := tokens.SetTokens(ctx, bundle); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	if _, err := guard.StartSession(ctx, bundle.UserID, hostDeviceID(), "aegis-probe/1.0"); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	log.Info("authenticated", "user_id", bundle.UserID)

	res, err := client.Get(ctx, "/api/profile", nil)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	log.Info("profile fetched", "status", res.Status, "body", string(res.Body))

	// The stub returns 401 on the first call; the pipeline should refresh and retry once.
	res, err = client.Get(ctx, "/api/expire-once", nil)
	if err != nil {
		return fmt.Errorf("expire-once: %w", err)
	}
	log.Info("refresh-and-retry survived", "status", res.Status)

	// 503s are terminal, not retried; expect a few failures before a success.
	for i := 0; i < 3; i++ {
		res, err = client.Get(ctx, "/api/flaky", &pipeline.Config{Retries: 2})
		if err == nil {
			log.Info("flaky endpoint answered", "status", res.Status)
			break
		}
		log.Warn("flaky endpoint failed", "attempt", i+1, "error", err)
	}

	res, err = client.Post(ctx, "/api/echo", map[string]any{
		"note": "hello",
		"ssn":  "000-00-0000",
	}, &pipeline.Config{
		Sign:            true,
		SensitiveFields: []string{"ssn"},
	})
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	log.Info("signed echo accepted", "status", res.Status)

	if err := guard.EndSession(ctx); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if err := tokens.ClearTokens(ctx); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	log.Info("probe walk complete")
	return nil
}

func serveMetrics(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Error("metrics server stopped", "error", err)
	}
}

// deviceSecret falls back to a hostname-derived secret so the probe works out
// of the box. Real deployments must set AEGIS_DEVICE_SECRET.
func deviceSecret(cfg config.Client) string {
	if cfg.DeviceSecret != "" {
		return cfg.DeviceSecret
	}
	host, err := os.Hostname()
	if err != nil {
		host = "aegis-fallback"
	}
	sum := sha256.Sum256([]byte("aegis-device:" + host))
	return hex.EncodeToString(sum[:])
}

func hostDeviceID() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown-device"
	}
	return host
}
