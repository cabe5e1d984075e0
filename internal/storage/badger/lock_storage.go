package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/interfaces"
)

const lockPrefix = "sess:lock:"

// LockStorage implements the LockManager interface for Badger using
// set-if-not-exists semantics inside a single transaction, with a TTL on the
// lock entry as a safety net against crashed holders. Release verifies token
// ownership (compare-and-delete) so a slow releaser cannot clobber a lock a
// new holder acquired after expiry.
type LockStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLockStorage creates a new LockStorage instance
func NewLockStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LockManager {
	return &LockStorage{
		db:     db,
		logger: logger,
	}
}

func lockKey(key string) []byte {
	return []byte(lockPrefix + key)
}

// Acquire sets the lock with a unique token only if it is not already held
func (s *LockStorage) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := common.NewLockToken()

	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(lockKey(key))
		if err == nil {
			return interfaces.ErrLockHeld
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.SetEntry(badgerdb.NewEntry(lockKey(key), []byte(token)).WithTTL(ttl))
	})
	if err == interfaces.ErrLockHeld {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return token, nil
}

// Release deletes the lock only if the presented token still owns it
func (s *LockStorage) Release(ctx context.Context, key string, token string) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(lockKey(key))
		if err == badgerdb.ErrKeyNotFound {
			// Already expired or released; nothing to do
			return nil
		}
		if err != nil {
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(val) != token {
			return interfaces.ErrNotLockHolder
		}
		return txn.Delete(lockKey(key))
	})
	if err == interfaces.ErrNotLockHolder {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
