package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
)

// Key namespaces. Records, index entries and locks live in separate prefixes
// so lock expiry can never corrupt record data.
const (
	sessionRecPrefix  = "sess:rec:"
	ownerIdxPrefix    = "sess:idx:owner:"
	identityIdxPrefix = "sess:idx:ident:"
	statusIdxPrefix   = "sess:idx:status:"
)

// SessionStorage implements the SessionStorage interface for Badger.
// Every write touches the record and its three index entries in a single
// transaction, with matching TTLs, so index membership always reflects the
// stored status field.
type SessionStorage struct {
	db     *BadgerDB
	ttl    time.Duration
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, ttl time.Duration, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionRecKey(id string) []byte {
	return []byte(sessionRecPrefix + id)
}

func ownerIdxKey(ownerID, id string) []byte {
	return []byte(ownerIdxPrefix + ownerID + ":" + id)
}

func identityIdxKey(identity, id string) []byte {
	return []byte(identityIdxPrefix + identity + ":" + id)
}

func statusIdxKey(status models.SessionStatus, id string) []byte {
	return []byte(statusIdxPrefix + string(status) + ":" + id)
}

// Put stores the record and (re)populates all three indices in one
// transaction, resetting the TTL on record and indices alike
func (s *SessionStorage) Put(ctx context.Context, record *models.SessionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("session record ID is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	err = s.db.DB().Update(func(txn *badgerdb.Txn) error {
		// Drop index entries whose bucket no longer matches the record
		item, err := txn.Get(sessionRecKey(record.ID))
		if err == nil {
			var prev models.SessionRecord
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(val, &prev); err != nil {
				return fmt.Errorf("failed to unmarshal previous record: %w", err)
			}
			if prev.OwnerID != record.OwnerID {
				if err := txn.Delete(ownerIdxKey(prev.OwnerID, prev.ID)); err != nil {
					return err
				}
			}
			if prev.Identity != record.Identity {
				if err := txn.Delete(identityIdxKey(prev.Identity, prev.ID)); err != nil {
					return err
				}
			}
			if prev.Status != record.Status {
				if err := txn.Delete(statusIdxKey(prev.Status, prev.ID)); err != nil {
					return err
				}
			}
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		if err := txn.SetEntry(badgerdb.NewEntry(sessionRecKey(record.ID), data).WithTTL(s.ttl)); err != nil {
			return err
		}
		if err := txn.SetEntry(badgerdb.NewEntry(ownerIdxKey(record.OwnerID, record.ID), nil).WithTTL(s.ttl)); err != nil {
			return err
		}
		if err := txn.SetEntry(badgerdb.NewEntry(identityIdxKey(record.Identity, record.ID), nil).WithTTL(s.ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badgerdb.NewEntry(statusIdxKey(record.Status, record.ID), nil).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to put session record: %w", err)
	}
	return nil
}

// Get retrieves a record by id
func (s *SessionStorage) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(sessionRecKey(id))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, &record)
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}
	return &record, nil
}

// MembersByOwner returns the ids of all sessions indexed under an owner
func (s *SessionStorage) MembersByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return s.members(ownerIdxPrefix + ownerID + ":")
}

// MembersByIdentity returns the ids of all sessions indexed under an identity
func (s *SessionStorage) MembersByIdentity(ctx context.Context, identity string) ([]string, error) {
	return s.members(identityIdxPrefix + identity + ":")
}

// MembersByStatus returns the ids of all sessions indexed under a status
func (s *SessionStorage) MembersByStatus(ctx context.Context, status models.SessionStatus) ([]string, error) {
	return s.members(statusIdxPrefix + string(status) + ":")
}

func (s *SessionStorage) members(prefix string) ([]string, error) {
	ids := []string{}
	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan index %s: %w", prefix, err)
	}
	return ids, nil
}

// Scan returns all stored session records
func (s *SessionStorage) Scan(ctx context.Context) ([]*models.SessionRecord, error) {
	records := []*models.SessionRecord{}
	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(sessionRecPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var record models.SessionRecord
			if err := json.Unmarshal(val, &record); err != nil {
				return fmt.Errorf("failed to unmarshal session record: %w", err)
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan session records: %w", err)
	}
	return records, nil
}

// Remove deletes the record and its entries from all three indices. The
// record is read first so the correct index buckets are cleaned; an absent
// record is not an error (stale index entries self-heal on the next get miss).
func (s *SessionStorage) Remove(ctx context.Context, id string) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(sessionRecKey(id))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var record models.SessionRecord
		if err := json.Unmarshal(val, &record); err != nil {
			return fmt.Errorf("failed to unmarshal session record: %w", err)
		}

		if err := txn.Delete(sessionRecKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(ownerIdxKey(record.OwnerID, id)); err != nil {
			return err
		}
		if err := txn.Delete(identityIdxKey(record.Identity, id)); err != nil {
			return err
		}
		return txn.Delete(statusIdxKey(record.Status, id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove session record: %w", err)
	}
	return nil
}
