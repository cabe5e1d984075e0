package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by a single acquisition attempt when the lock is
// already held. The lock manager never retries; callers decide whether to
// back off and try again.
var ErrLockHeld = errors.New("lock already held")

// ErrNotLockHolder is returned when a release presents a token that does not
// match the current holder. A slow holder whose lock already expired must not
// clobber the lock a new holder acquired in the meantime.
var ErrNotLockHolder = errors.New("lock held by another token")

// LockManager provides short-lived mutual-exclusion locks keyed by session id,
// used to serialize concurrent read-modify-write cycles on the same record.
// Lock keys live in a namespace separate from session records and indices, so
// lock expiry can never corrupt record data.
type LockManager interface {
	// Acquire sets the lock with a unique token only if it is not already
	// held ("set if not exists"), with ttl as a safety net against crashed
	// holders. Returns the token on success or ErrLockHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Release deletes the lock only if the presented token still owns it
	// (compare-and-delete). Releasing an already-expired lock is not an error.
	Release(ctx context.Context, key string, token string) error
}
