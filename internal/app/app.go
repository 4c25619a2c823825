package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/repository"
	"github.com/xenking/checkout-pricing/pkg/health"
)

// Run connects to PostgreSQL (and Redis when configured), builds the pricing
// server and serves it until ctx is done.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
			return errors.Wrap(err, "instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
			return errors.Wrap(err, "instrument redis metrics")
		}
	}

	srv, err := newServer(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg, pool, rdb)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	srv.health.Start(ctx, 10*time.Second)
	defer srv.health.Stop()
	srv.health.SetReady(true)

	return serve(ctx, lg, httpServer, srv.health, cfg.Graceful)
}

// serve runs httpServer until ctx is cancelled. On cancellation readiness is
// dropped first so load balancers stop routing, then in-flight requests are
// drained within g.ShutdownTimeout.
func serve(ctx context.Context, lg *zap.Logger, httpServer *http.Server, hs *health.Health, g GracefulConfig) error {
	errc := make(chan error, 1)
	go func() {
		lg.Info("Server listening", zap.String("addr", httpServer.Addr))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	hs.SetReady(false)
	lg.Info("Draining before shutdown", zap.Duration("delay", g.ReadinessDelay))
	if g.ReadinessDelay > 0 {
		time.Sleep(g.ReadinessDelay)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.ShutdownTimeout)
	defer cancel()

	lg.Info("Shutting down", zap.Duration("timeout", g.ShutdownTimeout))
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}
