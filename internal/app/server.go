package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/catalogcache"
	"github.com/xenking/checkout-pricing/internal/domain/auth"
	"github.com/xenking/checkout-pricing/internal/domain/cart"
	"github.com/xenking/checkout-pricing/internal/domain/coupon"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/pricing"
	"github.com/xenking/checkout-pricing/internal/handler"
	"github.com/xenking/checkout-pricing/internal/repository"
	"github.com/xenking/checkout-pricing/internal/taxclient"
	"github.com/xenking/checkout-pricing/pkg/health"
	"github.com/xenking/checkout-pricing/pkg/httpmiddleware"
)

const serviceName = "checkout-pricing"

// server is the wired HTTP stack. Health checks are registered but not
// started.
type server struct {
	handler http.Handler
	health  *health.Health
}

// newServer wires repositories, the pricing engine and the HTTP routes. rdb
// may be nil, which disables the catalog cache and keeps rate limits in
// process memory.
func newServer(
	ctx context.Context,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	pool *pgxpool.Pool,
	rdb *redis.Client,
) (*server, error) {
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// Repositories.
	products := catalogcache.New(repository.NewCatalogRepository(pool), rdb, cfg.CatalogCacheTTL)
	coupons := repository.NewCouponRepository(pool)
	memberships := repository.NewMembershipRepository(pool)
	carts := repository.NewCartRepository(pool)
	apikeys := repository.NewAPIKeyRepository(pool)

	// Domain services.
	engineOpts := []pricing.Option{
		pricing.WithTracerProvider(tp),
		pricing.WithMeterProvider(mp),
	}
	if cfg.Tax.BaseURL != "" {
		tc, err := taxclient.New(taxclient.Config{
			BaseURL:   cfg.Tax.BaseURL,
			AccountID: cfg.Tax.AccountID,
			License:   cfg.Tax.License,
		},
			taxclient.WithTracerProvider(tp),
			taxclient.WithMeterProvider(mp),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create tax client")
		}
		engineOpts = append(engineOpts, pricing.WithTaxAdapter(tc))
	} else {
		lg.Info("Sales tax disabled")
	}

	membershipResolver := membership.NewResolver(memberships)
	engine, err := pricing.NewEngine(
		pricing.Config{
			ProgramOverlap: pricing.Overlap(cfg.Pricing.ProgramOverlap),
			TaxTimeout:     cfg.Pricing.TaxTimeout,
		},
		products,
		coupon.NewValidator(coupons),
		membershipResolver,
		engineOpts...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create pricing engine")
	}

	h := handler.New(
		engine,
		cart.NewService(engine, carts),
		membershipResolver,
		products,
		auth.NewAuthenticator(apikeys, []byte(cfg.APIKeyPepper)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	var limits httpmiddleware.LimitStore
	if rdb != nil {
		limits = httpmiddleware.NewRedisStore(rdb, "pricing:ratelimit:")
	} else {
		mem := httpmiddleware.NewMemoryStore()
		mem.StartSweeper(ctx, cfg.RateLimit.Window)
		limits = mem
	}

	return &server{
		health: healthSvc,
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, tp, mp),
			httpmiddleware.LogRequests(),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Store:  limits,
			}),
		),
	}, nil
}
