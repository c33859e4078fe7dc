package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	Redis        RedisConfig
	Catalog      CatalogConfig
	Pricing      PricingConfig
	Kafka        KafkaConfig
	Session      SessionConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig points at the session store. An empty Addr keeps carts in
// process memory.
type RedisConfig struct {
	Addr       string        `default:"" usage:"Redis address (host:port); empty keeps carts in memory"`
	Password   string        `default:"" usage:"Redis password"`
	DB         int           `default:"0" usage:"Redis database"`
	Prefix     string        `default:"kart" usage:"Key prefix for session state"`
	SessionTTL time.Duration `default:"720h" usage:"Idle lifetime of a stored cart" flag:"session-ttl"`
}

// CatalogConfig selects where the coupon catalog is loaded from.
type CatalogConfig struct {
	Source   string        `default:"postgres" usage:"Coupon source: postgres or http"`
	URL      string        `default:"" usage:"Coupon listing URL for the http source"`
	Timeout  time.Duration `default:"10s" usage:"Coupon fetch timeout"`
	Location string        `default:"UTC" usage:"Time zone of expiry dates without an offset"`
}

// PricingConfig holds the delivery and currency constants.
type PricingConfig struct {
	DeliveryCharge        string `default:"50" usage:"Delivery charge below the free delivery threshold"`
	FreeDeliveryThreshold string `default:"500" usage:"Discounted subtotal with free delivery"`
	CurrencySymbol        string `default:"₹" usage:"Currency symbol in coupon messages"`
	WaiveDeliveryCoupons  bool   `default:"false" usage:"Let delivery_free coupons zero the delivery charge" flag:"waive-delivery-coupons"`
}

// KafkaConfig enables order events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for order events"`
	Topic   string   `default:"kart.orders" usage:"Order events topic"`
}

// SessionConfig controls in-process engine caching.
type SessionConfig struct {
	IdleTimeout time.Duration `default:"30m" usage:"Evict cached carts unused for this long" flag:"session-idle-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
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
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	switch c.Catalog.Source {
	case "postgres":
	case "http":
		if c.Catalog.URL == "" {
			return errors.New("catalog URL is required for the http coupon source")
		}
	default:
		return errors.Errorf("unknown coupon source %q", c.Catalog.Source)
	}
	if _, err := c.PricingConfig(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Catalog.Location); err != nil {
		return errors.Wrap(err, "catalog location")
	}
	return nil
}

// PricingConfig converts the pricing section into engine configuration.
func (c *Config) PricingConfig() (pricing.Config, error) {
	charge, err := decimal.NewFromString(c.Pricing.DeliveryCharge)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "delivery charge")
	}
	threshold, err := decimal.NewFromString(c.Pricing.FreeDeliveryThreshold)
	if err != nil {
		return pricing.Config{}, errors.Wrap(err, "free delivery threshold")
	}
	return pricing.Config{
		DeliveryCharge:               charge,
		FreeDeliveryThreshold:        threshold,
		CurrencySymbol:               c.Pricing.CurrencySymbol,
		WaiveDeliveryForDeliveryFree: c.Pricing.WaiveDeliveryCoupons,
	}, nil
}

// applyPlatformDefaults maps DATABASE_URL, REDIS_URL style variables and
// PORT used by hosting platforms onto the KART_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
