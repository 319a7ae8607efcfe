package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kycbuster/internal/app"
	decisionhandler "kycbuster/internal/decision/handler"
	"kycbuster/internal/platform/config"
	"kycbuster/internal/platform/httpserver"
	"kycbuster/internal/platform/jwttoken"
	"kycbuster/internal/platform/logger"
	"kycbuster/internal/platform/metrics"
	ratelimitmetrics "kycbuster/internal/ratelimit/metrics"
	ratelimit "kycbuster/internal/ratelimit/middleware"
	"kycbuster/internal/ratelimit/store/bucket"
	recordshandler "kycbuster/internal/records/handler"
	httptransport "kycbuster/internal/transport/http"
	videohandler "kycbuster/internal/video/handler"
	sessionhandler "kycbuster/internal/workflow/handler"
)

const sessionSweepInterval = time.Minute

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	if cfg.UsingDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := core.Close(closeCtx); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	writes := bucket.New()
	router := httptransport.NewRouter(routerConfig(cfg, core, writes, log))
	srv := httpserver.New(cfg.Addr, router, cfg.Analysis.Timeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting kycbuster", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return core.Sessions.Run(gctx, sessionSweepInterval)
	})
	g.Go(func() error {
		return writes.Run(gctx, cfg.RateLimit.Window)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func routerConfig(cfg config.Server, core *app.App, writes *bucket.InMemoryBucketStore, log *slog.Logger) httptransport.Config {
	records := recordshandler.New(core.History, log)
	rc := httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		Tokens:         jwttoken.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer),
		Auditor:        core.Audit,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		Health:         map[string]httptransport.HealthCheck{},
		Routes: []httptransport.Routes{
			sessionhandler.New(core.Sessions, log),
			decisionhandler.New(core.Decisions, log),
			records,
			videohandler.New(core.Video, log),
		},
		Admin: []httptransport.AdminRoutes{records},
	}
	if core.DB != nil {
		rc.Health["database"] = core.DB.PingContext
	}
	if cfg.RateLimit.Limit > 0 {
		limiter := ratelimit.New(writes, cfg.RateLimit.Limit, cfg.RateLimit.Window, log,
			ratelimit.WithMetrics(ratelimitmetrics.New()))
		rc.RateLimit = limiter.RateLimitWrites
	}
	if core.Redis != nil {
		rc.Idempotency = core.Redis
		rc.Health["redis"] = core.Redis.Health
	}
	return rc
}
