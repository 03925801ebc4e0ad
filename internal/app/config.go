package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `default:"redis://localhost:6379/0" usage:"Redis connection URL (CHECKOUT_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (CHECKOUT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Currency     string `default:"USD" usage:"Charge currency"`

	Shipping    ShippingConfig
	Reservation ReservationConfig
	Idempotency IdempotencyConfig
	Gateway     GatewayConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// ShippingConfig holds the pricing calculator parameters.
type ShippingConfig struct {
	FreeThreshold float64 `default:"100" usage:"Subtotal above which shipping is free" flag:"free-shipping-threshold"`
	FlatRate      float64 `default:"10"  usage:"Flat shipping rate at or below the threshold" flag:"flat-shipping-rate"`
}

// ReservationConfig bounds how long inventory holds live.
type ReservationConfig struct {
	TTL           time.Duration `default:"15m" usage:"Reservation lifetime before the expiry sweep reclaims it"`
	SweepInterval time.Duration `default:"1m"  usage:"How often the expiry sweep runs" flag:"sweep-interval"`
}

// IdempotencyConfig bounds how long checkout results are replayable.
type IdempotencyConfig struct {
	TTL time.Duration `default:"24h" usage:"Idempotency key lifetime"`
}

// GatewayConfig points at the external payment provider.
type GatewayConfig struct {
	Endpoint string        `usage:"Payment gateway base URL (CHECKOUT_GATEWAY_ENDPOINT)" flag:"gateway-endpoint"`
	APIKey   string        `usage:"Payment gateway API key" flag:"gateway-api-key"`
	Timeout  time.Duration `default:"10s" usage:"Per-charge gateway timeout" flag:"gateway-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Gateway.Endpoint == "" {
		return nil, errors.New("payment gateway endpoint is required: set CHECKOUT_GATEWAY_ENDPOINT")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && strings.HasPrefix(c.RedisURL, "redis://localhost") {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
