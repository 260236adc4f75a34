package core

// sweep.go runs the two catalog lifecycle sweeps:
//  1. Clear is_new on products first seen longer ago than the grace period.
//  2. Deactivate products unseen for longer than the discontinuation
//     threshold, skipping anything stamped with the current batch.
//
// Both take the per-supplier lock used by the merge so they never interleave
// with an in-flight batch. A supplier whose lock is busy is skipped and picked
// up on the next run.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pricelist/internal/logging"
)

const (
	// DefaultNewGracePeriod is how long a product stays flagged as new.
	DefaultNewGracePeriod = 7 * 24 * time.Hour
	// DefaultDiscontinueAfter is how long a product may go unseen before it is deactivated.
	DefaultDiscontinueAfter = 90 * 24 * time.Hour
	// DefaultSweepInterval is how often the scheduler runs.
	DefaultSweepInterval = time.Hour
	// DefaultSweepLockWait bounds how long a sweep waits for a busy supplier.
	DefaultSweepLockWait = 2 * time.Second
)

// SweepConfig holds the sweep thresholds. Zero values take the defaults.
type SweepConfig struct {
	NewGracePeriod   time.Duration
	DiscontinueAfter time.Duration
	Interval         time.Duration
	LockWait         time.Duration
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.NewGracePeriod <= 0 {
		c.NewGracePeriod = DefaultNewGracePeriod
	}
	if c.DiscontinueAfter <= 0 {
		c.DiscontinueAfter = DefaultDiscontinueAfter
	}
	if c.Interval <= 0 {
		c.Interval = DefaultSweepInterval
	}
	if c.LockWait <= 0 {
		c.LockWait = DefaultSweepLockWait
	}
	return c
}

// SweepResult reports one supplier's sweep.
type SweepResult struct {
	Scope       Scope `json:"scope"`
	ClearedNew  int64 `json:"clearedNew"`
	Deactivated int64 `json:"deactivated"`
	Skipped     bool  `json:"skipped"`
}

// Sweeper applies the lifecycle sweeps to a SweepStore.
type Sweeper struct {
	store  SweepStore
	locker SupplierLocker
	cfg    SweepConfig
	now    func() time.Time
}

// NewSweeper creates a sweeper. A nil locker disables locking.
func NewSweeper(store SweepStore, locker SupplierLocker, cfg SweepConfig) *Sweeper {
	return &Sweeper{store: store, locker: locker, cfg: cfg.withDefaults(), now: time.Now}
}

// ClearNewFlags clears is_new for scope's products past the grace period.
func (s *Sweeper) ClearNewFlags(ctx context.Context, scope Scope) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.NewGracePeriod)
	n, err := s.store.ClearNewFlags(ctx, scope, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear new flags: %w", err)
	}
	return n, nil
}

// DeactivateUnseen deactivates scope's products unseen past the threshold.
// Products stamped with currentBatch are never touched.
func (s *Sweeper) DeactivateUnseen(ctx context.Context, scope Scope, currentBatch uuid.UUID) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.DiscontinueAfter)
	n, err := s.store.DeactivateUnseen(ctx, scope, cutoff, currentBatch)
	if err != nil {
		return 0, fmt.Errorf("deactivate unseen: %w", err)
	}
	return n, nil
}

// Sweep runs both sweeps for scope under its supplier lock. A busy supplier
// yields a Skipped result and no error.
func (s *Sweeper) Sweep(ctx context.Context, scope Scope, currentBatch uuid.UUID) (SweepResult, error) {
	result := SweepResult{Scope: scope}

	if s.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
		unlock, err := s.locker.LockSupplier(lockCtx, scope)
		cancel()
		if err != nil {
			if errors.Is(err, ErrSupplierBusy) && ctx.Err() == nil {
				result.Skipped = true
				return result, nil
			}
			return result, fmt.Errorf("lock supplier %s: %w", scope.SupplierID, err)
		}
		defer unlock()
	}

	var err error
	if result.ClearedNew, err = s.ClearNewFlags(ctx, scope); err != nil {
		return result, err
	}
	if result.Deactivated, err = s.DeactivateUnseen(ctx, scope, currentBatch); err != nil {
		return result, err
	}
	return result, nil
}

// RunSweeps sweeps one supplier now, excluding its latest ingestion batch.
func (s *Service) RunSweeps(ctx context.Context, scope Scope) (SweepResult, error) {
	return s.sweeper.Sweep(ctx, scope, s.latestBatch(ctx, scope))
}

// latestBatch returns the id of the supplier's most recent run, or uuid.Nil.
func (s *Service) latestBatch(ctx context.Context, scope Scope) uuid.UUID {
	runs, err := s.store.ListRuns(ctx, scope, 1)
	if err != nil || len(runs) == 0 {
		return uuid.Nil
	}
	return runs[0].ID
}

// StartSweepScheduler sweeps every supplier immediately and then every
// cfg.Interval until ctx is cancelled.
func (s *Service) StartSweepScheduler(ctx context.Context) {
	cfg := s.sweeper.cfg
	ctx = logging.ContextWith(ctx, "job", "sweep")
	logger := logging.FromContext(ctx)
	logger.Info("sweep scheduler started",
		"new_grace_period", cfg.NewGracePeriod.String(),
		"discontinue_after", cfg.DiscontinueAfter.String(),
		"interval", cfg.Interval.String(),
	)

	s.runSweepJob(ctx)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep scheduler stopped")
			return
		case <-ticker.C:
			s.runSweepJob(ctx)
		}
	}
}

// runSweepJob performs one pass over every supplier with catalog rows.
func (s *Service) runSweepJob(ctx context.Context) {
	start := time.Now()
	logger := logging.FromContext(ctx)

	scopes, err := s.store.ListSupplierScopes(ctx)
	if err != nil {
		logger.Error("sweep: list suppliers failed", "error", err)
		return
	}

	var cleared, deactivated int64
	skipped := 0
	for _, scope := range scopes {
		if ctx.Err() != nil {
			return
		}
		res, err := s.RunSweeps(ctx, scope)
		if err != nil {
			logger.Error("sweep failed",
				"organization_id", scope.OrganizationID,
				"supplier_id", scope.SupplierID,
				"error", err,
			)
			continue
		}
		if res.Skipped {
			skipped++
			logger.Debug("sweep skipped busy supplier", "supplier_id", scope.SupplierID)
			continue
		}
		cleared += res.ClearedNew
		deactivated += res.Deactivated
	}

	logger.Info("sweep job completed",
		"suppliers", len(scopes),
		"skipped", skipped,
		"cleared_new", cleared,
		"deactivated", deactivated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
