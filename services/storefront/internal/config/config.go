package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Cart storage
	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	StorageNamespace string `env:"STORAGE_NAMESPACE" envDefault:""`
	CartStorageKey   string `env:"CART_STORAGE_KEY" envDefault:"cart"`
	CartTTLHours     int    `env:"CART_TTL_HOURS" envDefault:"0"`
	PersistTimeoutMS int    `env:"PERSIST_TIMEOUT_MS" envDefault:"2000"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"5"`

	// Catalog
	CatalogBaseURL        string  `env:"CATALOG_BASE_URL" envDefault:"https://dummyjson.com"`
	CatalogTimeoutSeconds int     `env:"CATALOG_TIMEOUT_SECONDS" envDefault:"10"`
	CatalogMaxRetries     int     `env:"CATALOG_MAX_RETRIES" envDefault:"2"`
	CatalogRateLimitRPS   float64 `env:"CATALOG_RATE_LIMIT_RPS" envDefault:"10"`
	CatalogRateBurst      int     `env:"CATALOG_RATE_BURST" envDefault:"20"`

	// Notifications
	ToastDurationMS int `env:"TOAST_DURATION_MS" envDefault:"3000"`

	// Kafka; publishing is disabled when empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Access control
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.LogFormat)
	}
	switch c.StorageDriver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of memory, redis, postgres; got %q", c.StorageDriver)
	}
	if c.CartStorageKey == "" {
		return fmt.Errorf("CART_STORAGE_KEY must not be empty")
	}
	if c.CartTTLHours < 0 {
		return fmt.Errorf("CART_TTL_HOURS must not be negative")
	}
	if c.PersistTimeoutMS <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT_MS must be positive")
	}
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL must not be empty")
	}
	if c.CatalogMaxRetries < 0 {
		return fmt.Errorf("CATALOG_MAX_RETRIES must not be negative")
	}
	if c.CatalogRateLimitRPS < 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT_RPS must not be negative")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
	}
	return nil
}

// IsDevelopment reports whether dev-only endpoints are enabled.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CartTTL is the storage expiry for the cart key; zero means none.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// PersistTimeout bounds each storage write.
func (c *Config) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutMS) * time.Millisecond
}

// ToastDuration is how long a notification stays visible.
func (c *Config) ToastDuration() time.Duration {
	return time.Duration(c.ToastDurationMS) * time.Millisecond
}

// CatalogTimeout bounds each catalog request.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutSeconds) * time.Second
}

// KafkaEnabled reports whether cart events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Postgres returns the pool configuration for the postgres driver.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPassword,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSLMode,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Redis returns the client configuration for the redis driver.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}
