package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/text/currency"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.Security.TrustedProxies = trimList(cfg.Security.TrustedProxies)
	cfg.Security.APIKeys = trimList(cfg.Security.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// trimList drops blank entries and surrounding spaces from a comma list.
func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Lock validation
	switch strings.ToLower(c.Lock.Driver) {
	case "postgres", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "REDIS_ADDR is required when LOCK_DRIVER is redis")
		}
		if c.Redis.LockTTL <= 0 {
			errs = append(errs, "REDIS_LOCK_TTL must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("LOCK_DRIVER (%q) must be one of: postgres, redis, memory", c.Lock.Driver))
	}

	// Ingest validation
	if c.Ingest.MaxFileSize <= 0 {
		errs = append(errs, "INGEST_MAX_FILE_SIZE must be positive")
	}
	if c.Ingest.MaxConcurrent <= 0 {
		errs = append(errs, "INGEST_MAX_CONCURRENT must be positive")
	}
	if c.Ingest.MaxWaitTime <= 0 {
		errs = append(errs, "INGEST_MAX_WAIT_TIME must be positive")
	}
	if c.Ingest.Timeout <= 0 {
		errs = append(errs, "INGEST_TIMEOUT must be positive")
	}
	if c.Ingest.Workers < 0 {
		errs = append(errs, "INGEST_WORKERS must be non-negative")
	}
	if c.Ingest.DefaultTaxRate < 0 || c.Ingest.DefaultTaxRate > 100 {
		errs = append(errs, "INGEST_DEFAULT_TAX_RATE must be 0-100")
	}

	// Each ingest holds a transaction connection, plus the advisory lock
	// connection when locks live in Postgres.
	perIngest := 1
	if strings.ToLower(c.Lock.Driver) == "postgres" {
		perIngest = 2
	}
	if c.Ingest.MaxConcurrent > 0 && int(c.Database.MaxConns) < perIngest*c.Ingest.MaxConcurrent {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= %d x INGEST_MAX_CONCURRENT (%d) with LOCK_DRIVER %s",
			c.Database.MaxConns, perIngest, c.Ingest.MaxConcurrent, c.Lock.Driver))
	}

	// Merge validation
	mode := strings.ToLower(c.Merge.Mode)
	if mode != "best_effort" && mode != "all_or_nothing" {
		errs = append(errs, fmt.Sprintf("MERGE_MODE (%q) must be one of: best_effort, all_or_nothing", c.Merge.Mode))
	}
	if c.Merge.BatchSize <= 0 {
		errs = append(errs, "MERGE_BATCH_SIZE must be positive")
	}
	if _, err := currency.ParseISO(strings.ToUpper(c.Merge.DefaultCurrency)); err != nil {
		errs = append(errs, fmt.Sprintf("MERGE_DEFAULT_CURRENCY (%q) must be an ISO 4217 code", c.Merge.DefaultCurrency))
	}

	// Sweep validation
	if c.Sweep.NewGracePeriod <= 0 {
		errs = append(errs, "SWEEP_NEW_GRACE_PERIOD must be positive")
	}
	if c.Sweep.DiscontinueAfter <= 0 {
		errs = append(errs, "SWEEP_DISCONTINUE_AFTER must be positive")
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		errs = append(errs, "SWEEP_INTERVAL must be positive when sweeps are enabled")
	}

	// Pricing validation
	if c.Pricing.DefaultMarginPct < 0 {
		errs = append(errs, "PRICING_DEFAULT_MARGIN_PCT must be non-negative")
	}
	if c.Pricing.MinMarginPct < 0 {
		errs = append(errs, "PRICING_MIN_MARGIN_PCT must be non-negative")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		maskURL(c.Database.URL), c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Lock: {Driver: %q}, ", c.Lock.Driver))
	b.WriteString(fmt.Sprintf("Redis: {Addr: %q, Password: %s}, ", c.Redis.Addr, maskSecret(c.Redis.Password)))
	b.WriteString(fmt.Sprintf("Ingest: {MaxFileSize: %s, MaxConcurrent: %d, Workers: %d}, ",
		c.Ingest.MaxFileSize, c.Ingest.MaxConcurrent, c.Ingest.Workers))
	b.WriteString(fmt.Sprintf("Merge: {Mode: %q, BatchSize: %d}, ", c.Merge.Mode, c.Merge.BatchSize))
	b.WriteString(fmt.Sprintf("Sweep: {Enabled: %v, Interval: %s}, ", c.Sweep.Enabled, c.Sweep.Interval))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

// maskURL keeps scheme, host and database but hides credentials.
func maskURL(raw string) string {
	if raw == "" {
		return `""`
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[MASKED]"
	}
	if u.User != nil {
		u.User = url.User("****")
	}
	u.RawQuery = ""
	return u.String()
}

func maskSecret(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
