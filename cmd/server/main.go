package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/pricelist/internal/config"
	"github.com/JonMunkholm/pricelist/internal/core"
	"github.com/JonMunkholm/pricelist/internal/database"
	"github.com/JonMunkholm/pricelist/internal/lock"
	"github.com/JonMunkholm/pricelist/internal/logging"
	"github.com/JonMunkholm/pricelist/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	locker, closeLocker, err := newLocker(ctx, cfg, pool)
	if err != nil {
		slog.Error("failed to set up supplier locks", "driver", cfg.Lock.Driver, "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	core.IngestTimeout = cfg.Ingest.Timeout
	mode, err := core.ParseMergeMode(strings.ToLower(cfg.Merge.Mode))
	if err != nil {
		slog.Error("invalid merge mode", "error", err)
		os.Exit(1)
	}

	service := core.NewService(core.NewPgStore(pool), locker, core.ServiceConfig{
		MergeMode:              mode,
		MergeBatchSize:         cfg.Merge.BatchSize,
		DefaultLocation:        cfg.Merge.DefaultLocation,
		DefaultCurrency:        strings.ToUpper(cfg.Merge.DefaultCurrency),
		DefaultLeadTimeDays:    cfg.Ingest.DefaultLeadTimeDays,
		DefaultTaxRate:         decimal.NewFromFloat(cfg.Ingest.DefaultTaxRate),
		CheckIdentifierCharset: cfg.Ingest.CheckIdentifierCharset,
		Workers:                cfg.Ingest.Workers,
		DefaultMarginPct:       decimal.NewFromFloat(cfg.Pricing.DefaultMarginPct),
		MinMarginPct:           decimal.NewFromFloat(cfg.Pricing.MinMarginPct),
		MaxConcurrentIngests:   cfg.Ingest.MaxConcurrent,
		MaxIngestWait:          cfg.Ingest.MaxWaitTime,
		Sweep: core.SweepConfig{
			NewGracePeriod:   cfg.Sweep.NewGracePeriod,
			DiscontinueAfter: cfg.Sweep.DiscontinueAfter,
			Interval:         cfg.Sweep.Interval,
			LockWait:         cfg.Sweep.LockWait,
		},
	})

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if cfg.Sweep.Enabled {
		go service.StartSweepScheduler(jobCtx)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active ingests to complete (with timeout)
		status := service.IngestLimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for ingests to complete", "active", status.Active)
			if err := service.WaitForIngests(shutdownCtx); err != nil {
				slog.Warn("ingests did not complete in time", "error", err)
			} else {
				slog.Info("all ingests completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newLocker builds the per-supplier locker selected by LOCK_DRIVER.
// The returned func releases whatever the locker holds open.
func newLocker(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (core.SupplierLocker, func(), error) {
	switch strings.ToLower(cfg.Lock.Driver) {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
		}
		slog.Info("supplier locks use redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.LockTTL.String())
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("close redis", "error", err)
			}
		}
		return lock.NewRedisLocker(rdb, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL, cfg.Redis.LockRetry), closeFn, nil
	case "memory":
		slog.Warn("supplier locks are in-process only; run a single replica")
		return core.NewMemoryLocker(), func() {}, nil
	default:
		slog.Info("supplier locks use postgres advisory locks")
		return lock.NewPgLocker(pool, cfg.Lock.PollInterval), func() {}, nil
	}
}
