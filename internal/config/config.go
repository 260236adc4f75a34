// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Ingest   IngestConfig
	Merge    MergeConfig
	Sweep    SweepConfig
	Pricing  PricingConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" env-default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" env-default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"60s"`

	// WriteTimeout is the maximum duration for writing a response. Ingest
	// responses are written after the merge, so it must cover INGEST_TIMEOUT. (default: 15m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`

	// RequestTimeout bounds every request except validate and ingest (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" env-default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL,DB_URL" env-required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int32 `env:"DB_MAX_CONNS" env-default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int32 `env:"DB_MIN_CONNS" env-default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" env-default:"30m"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// RedisConfig holds the Redis connection used by the redis lock driver.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"pricelist:"`

	// LockTTL is the lifetime of a supplier lock between refreshes (default: 2m)
	LockTTL time.Duration `env:"REDIS_LOCK_TTL" env-default:"2m"`

	// LockRetry is the linear backoff between attempts on a held lock (default: 100ms)
	LockRetry time.Duration `env:"REDIS_LOCK_RETRY" env-default:"100ms"`
}

// LockConfig selects how merges and sweeps are serialized per supplier.
type LockConfig struct {
	// Driver is postgres (advisory locks), redis, or memory (single process only)
	Driver string `env:"LOCK_DRIVER" env-default:"postgres"`

	// PollInterval is how often the postgres driver retries a held lock (default: 100ms)
	PollInterval time.Duration `env:"LOCK_POLL_INTERVAL" env-default:"100ms"`
}

// IngestConfig holds pricelist upload and validation settings.
type IngestConfig struct {
	// MaxFileSize accepts plain bytes or KB/MB/GB suffixes (default: 100MB)
	MaxFileSize ByteSize `env:"INGEST_MAX_FILE_SIZE" env-default:"100MB"`

	// MaxConcurrent is the maximum number of parallel ingests (default: 5)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" env-default:"5"`

	// MaxWaitTime is how long to wait for an ingest slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" env-default:"30s"`

	// Timeout is the maximum duration of one ingest (default: 10m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" env-default:"10m"`

	// Workers is the validation fan-out; 0 means GOMAXPROCS
	Workers int `env:"INGEST_WORKERS" env-default:"0"`

	// DefaultLeadTimeDays applies when a row has no lead time; 0 uses the built-in default
	DefaultLeadTimeDays int `env:"INGEST_DEFAULT_LEAD_TIME_DAYS" env-default:"0"`

	// DefaultTaxRate in percent applies when a row has no tax rate (default: 15)
	DefaultTaxRate float64 `env:"INGEST_DEFAULT_TAX_RATE" env-default:"15"`

	// CheckIdentifierCharset reports SKUs with unusual characters as info issues (default: true)
	CheckIdentifierCharset bool `env:"INGEST_CHECK_IDENTIFIER_CHARSET" env-default:"true"`
}

// MergeConfig holds temporal merge settings.
type MergeConfig struct {
	// Mode is best_effort or all_or_nothing (default: best_effort)
	Mode string `env:"MERGE_MODE" env-default:"best_effort"`

	// BatchSize is the number of items per best-effort transaction (default: 500)
	BatchSize int `env:"MERGE_BATCH_SIZE" env-default:"500"`

	DefaultCurrency string `env:"MERGE_DEFAULT_CURRENCY" env-default:"ZAR"`
	DefaultLocation string `env:"MERGE_DEFAULT_LOCATION" env-default:"main"`
}

// SweepConfig holds product lifecycle sweep settings.
type SweepConfig struct {
	// Enabled starts the periodic scheduler (default: true)
	Enabled bool `env:"SWEEP_ENABLED" env-default:"true"`

	// NewGracePeriod is how long a product keeps its new flag (default: 7 days)
	NewGracePeriod time.Duration `env:"SWEEP_NEW_GRACE_PERIOD" env-default:"168h"`

	// DiscontinueAfter deactivates products unseen for this long (default: 90 days)
	DiscontinueAfter time.Duration `env:"SWEEP_DISCONTINUE_AFTER" env-default:"2160h"`

	// Interval between scheduled sweeps (default: 1h)
	Interval time.Duration `env:"SWEEP_INTERVAL" env-default:"1h"`

	// LockWait is how long a sweep waits for a busy supplier before skipping it (default: 2s)
	LockWait time.Duration `env:"SWEEP_LOCK_WAIT" env-default:"2s"`
}

// PricingConfig holds fallback pricing settings for organizations without their own.
type PricingConfig struct {
	DefaultMarginPct float64 `env:"PRICING_DEFAULT_MARGIN_PCT" env-default:"30"`
	MinMarginPct     float64 `env:"PRICING_MIN_MARGIN_PCT" env-default:"5"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" env-default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" env-default:"100"`

	// IngestLimit is requests per minute for validate and ingest endpoints (default: 10)
	IngestLimit int `env:"RATE_LIMIT_INGEST" env-default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" env-default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS" env-separator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" env-default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ByteSize is a size in bytes read from values like "512", "64KB" or "100MB".
type ByteSize int64

var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// SetValue implements cleanenv.Setter.
func (b *ByteSize) SetValue(s string) error {
	v := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q", s)
	}
	*b = ByteSize(n * mult)
	return nil
}

func (b ByteSize) String() string {
	for _, u := range byteUnits {
		if u.mult > 1 && int64(b) >= u.mult && int64(b)%u.mult == 0 {
			return strconv.FormatInt(int64(b)/u.mult, 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(b), 10) + "B"
}
