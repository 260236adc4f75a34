package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/pricelist/internal/core"
	db "github.com/JonMunkholm/pricelist/internal/database"
)

// DefaultPollInterval is how often PgLocker retries a held lock.
const DefaultPollInterval = 100 * time.Millisecond

// PgLocker holds session-level advisory locks on a dedicated pool
// connection for as long as the caller keeps the lock.
type PgLocker struct {
	pool *pgxpool.Pool
	poll time.Duration
}

// NewPgLocker creates a locker over pool. A zero poll uses DefaultPollInterval.
func NewPgLocker(pool *pgxpool.Pool, poll time.Duration) *PgLocker {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &PgLocker{pool: pool, poll: poll}
}

var _ core.SupplierLocker = (*PgLocker)(nil)

// LockSupplier polls pg_try_advisory_lock until it succeeds or ctx ends.
func (l *PgLocker) LockSupplier(ctx context.Context, scope core.Scope) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, busy(ctx.Err())
		}
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	q := db.New(conn)
	key := AdvisoryKey(scope)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := q.TryAdvisoryLock(ctx, key)
		if err != nil {
			conn.Release()
			if ctx.Err() != nil {
				return nil, busy(ctx.Err())
			}
			return nil, fmt.Errorf("try advisory lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			conn.Release()
			return nil, busy(ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			if _, err := q.AdvisoryUnlock(releaseCtx, key); err != nil {
				// The lock is session scoped; closing the connection frees it
				// and keeps the pool from handing out a locked session.
				slog.Warn("advisory unlock failed, closing connection", "key", key, "error", err)
				_ = conn.Conn().Close(releaseCtx)
			}
			conn.Release()
		})
	}, nil
}
