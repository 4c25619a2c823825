package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL     string        `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL        string        `default:"" usage:"Redis URL for the catalog cache and rate limiter; empty disables both" flag:"redis-url"`
	CatalogCacheTTL time.Duration `default:"5m" usage:"Catalog cache entry lifetime" flag:"catalog-cache-ttl"`
	APIKeyPepper    string        `usage:"HMAC pepper for API key hashing (PRICING_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing         PricingConfig
	Tax             TaxConfig
	RateLimit       RateLimitConfig
	Graceful        GracefulConfig
}

// PricingConfig tunes the pricing engine.
type PricingConfig struct {
	ProgramOverlap string        `default:"once" usage:"Program bound twice in one cart: once or allow" flag:"program-overlap"`
	TaxTimeout     time.Duration `default:"3s" usage:"Sales tax request timeout" flag:"tax-timeout"`
}

// TaxConfig points at the sales tax service. An empty BaseURL disables tax.
type TaxConfig struct {
	BaseURL   string `default:"" usage:"Sales tax service base URL" flag:"tax-base-url"`
	AccountID string `default:"" usage:"Sales tax service account id" flag:"tax-account-id"`
	License   string `default:"" usage:"Sales tax service license key" flag:"tax-license"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PRICING_DATABASE_URL or DATABASE_URL")
	}
	switch pricing.Overlap(c.Pricing.ProgramOverlap) {
	case "", pricing.OverlapOnce, pricing.OverlapAllow:
	default:
		return errors.Errorf("invalid program overlap %q: want %q or %q",
			c.Pricing.ProgramOverlap, pricing.OverlapOnce, pricing.OverlapAllow)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL, REDIS_URL and PORT to the application's
// PRICING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
