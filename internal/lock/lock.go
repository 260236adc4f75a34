// Package lock provides cross-process supplier locks for the merge engine
// and the sweeper. Both implementations satisfy core.SupplierLocker.
package lock

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// releaseTimeout bounds the unlock round trip; unlock runs after the
// caller's context may already be done.
const releaseTimeout = 5 * time.Second

// AdvisoryKey maps a scope to a stable 64-bit key.
func AdvisoryKey(scope core.Scope) int64 {
	h := fnv.New64a()
	h.Write(scope.OrganizationID[:])
	h.Write(scope.SupplierID[:])
	return int64(h.Sum64())
}

// RedisKey is the Redis key a supplier's lock lives under.
func RedisKey(prefix string, scope core.Scope) string {
	return fmt.Sprintf("%slock:supplier:%s:%s", prefix, scope.OrganizationID, scope.SupplierID)
}

func busy(cause error) error {
	return fmt.Errorf("%w: %v", core.ErrSupplierBusy, cause)
}
