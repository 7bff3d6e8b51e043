package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (POS_DATABASE_URL or DATABASE_URL); empty serves the catalog file from memory" flag:"database-url"`
	CatalogFile  string `usage:"Catalog JSON file for memory mode; empty uses the bundled catalog" flag:"catalog-file"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (POS_API_KEY_PEPPER)" flag:"api-key-pepper"`
	TerminalKey  string `usage:"API key accepted in memory mode" flag:"terminal-key"`
	TaxRate      string `default:"0.12" usage:"Sales tax rate applied after discounts" flag:"tax-rate"`
	Timezone     string `default:"Local" usage:"IANA zone promotion windows are evaluated in" flag:"timezone"`
	Redis        RedisConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig enables the catalog read-through cache when URL is set.
type RedisConfig struct {
	URL string        `usage:"Redis URL for the catalog cache (POS_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TTL time.Duration `default:"30s" usage:"Catalog cache lifetime" flag:"redis-ttl"`
}

// KafkaConfig enables transaction events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for transaction events" flag:"kafka-brokers"`
	Topic   string   `default:"pos.transactions" usage:"Kafka topic for transaction events" flag:"kafka-topic"`
}

// RateLimitConfig controls the per-terminal sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POS",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/pos/config.yaml"},
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

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	rate, err := c.Rate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Errorf("tax rate %s out of range [0, 1)", rate)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DatabaseURL != "" && c.APIKeyPepper == "" {
		return errors.New("api key pepper is required with a database: set POS_API_KEY_PEPPER")
	}
	if c.DatabaseURL == "" && c.TerminalKey == "" {
		return errors.New("terminal key is required in memory mode: set POS_TERMINAL_KEY")
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// Rate returns the configured tax rate.
func (c *Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	return rate, nil
}

// Location returns the zone promotion windows and history dates use.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

// MemoryMode reports whether the service runs without PostgreSQL.
func (c *Config) MemoryMode() bool {
	return c.DatabaseURL == ""
}
