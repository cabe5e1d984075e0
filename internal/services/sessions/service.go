package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
)

// lockPollInterval is how often a blocked update retries lock acquisition
// within its bounded wait
const lockPollInterval = 50 * time.Millisecond

// Service implements the SessionService interface. It is the only writer of
// session records: every mutation goes through the lock-then-read-modify-write
// path so concurrent pollers cannot interleave updates to the same record.
type Service struct {
	store        interfaces.SessionStorage
	locks        interfaces.LockManager
	logger       arbor.ILogger
	lockWait     time.Duration
	lockTTL      time.Duration
	ownerScanCap int
}

// NewService creates a new session lifecycle service
func NewService(store interfaces.SessionStorage, locks interfaces.LockManager, config *common.SessionsConfig, logger arbor.ILogger) *Service {
	return &Service{
		store:        store,
		locks:        locks,
		logger:       logger,
		lockWait:     config.LockWait,
		lockTTL:      config.LockTTL,
		ownerScanCap: config.OwnerScanCap,
	}
}

// Create writes a new session record. Freshly generated ids cannot collide,
// so no lock is taken.
func (s *Service) Create(ctx context.Context, ownerID, identity string, material []byte, status models.SessionStatus) (*models.SessionRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid session status %q", status)
	}

	now := time.Now()
	record := &models.SessionRecord{
		ID:                 common.NewSessionID(),
		OwnerID:            ownerID,
		Identity:           identity,
		Status:             status,
		CredentialMaterial: material,
		CreatedAt:          now,
		LastUsedAt:         now,
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", record.ID).
		Str("owner_id", ownerID).
		Str("status", string(status)).
		Msg("Session created")

	return record, nil
}

// Update applies a partial mutation under lock. The merged record is written
// in a single store transaction so index membership moves atomically with a
// status change.
func (s *Service) Update(ctx context.Context, id string, update models.SessionUpdate) (*models.SessionRecord, error) {
	token, err := s.acquireWithWait(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(ctx, id, token); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to release session lock")
		}
	}()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := current.Clone()
	if update.Status != nil {
		if !update.Status.IsValid() {
			return nil, fmt.Errorf("invalid session status %q", *update.Status)
		}
		merged.Status = *update.Status
	}
	if update.CredentialMaterial != nil {
		merged.CredentialMaterial = update.CredentialMaterial
	}
	if update.ErrorDetail != nil {
		merged.ErrorDetail = *update.ErrorDetail
	}
	if update.IncrementUseCount {
		merged.UseCount++
	}
	merged.LastUsedAt = time.Now()

	if err := s.store.Put(ctx, merged); err != nil {
		return nil, err
	}

	if update.Status != nil && *update.Status != current.Status {
		s.logger.Debug().
			Str("session_id", id).
			Str("from", string(current.Status)).
			Str("to", string(merged.Status)).
			Msg("Session status changed")
	}

	return merged, nil
}

// Touch bumps LastUsedAt and the use counter on a reused session
func (s *Service) Touch(ctx context.Context, id string) (*models.SessionRecord, error) {
	return s.Update(ctx, id, models.SessionUpdate{IncrementUseCount: true})
}

// acquireWithWait retries single-shot lock acquisition until the bounded wait
// expires. Contention surfaces as ErrLockTimeout, distinct from not-found and
// from store errors, so callers can back off specifically on contention.
func (s *Service) acquireWithWait(ctx context.Context, id string) (string, error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		token, err := s.locks.Acquire(ctx, id, s.lockTTL)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, interfaces.ErrLockHeld) {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", interfaces.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Get fetches a single record by id
func (s *Service) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	return s.store.Get(ctx, id)
}

// GetActiveForOwner returns the most recently used active session for an
// owner. Ties on LastUsedAt break deterministically on the higher id. The
// candidate load is capped to keep owners with long session histories cheap.
func (s *Service) GetActiveForOwner(ctx context.Context, ownerID string) (*models.SessionRecord, error) {
	ids, err := s.store.MembersByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(ids) > s.ownerScanCap {
		s.logger.Warn().
			Str("owner_id", ownerID).
			Int("sessions", len(ids)).
			Int("cap", s.ownerScanCap).
			Msg("Owner session index exceeds scan cap; truncating")
		ids = ids[:s.ownerScanCap]
	}

	var best *models.SessionRecord
	for _, id := range ids {
		record, err := s.store.Get(ctx, id)
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			// Stale index entry left by TTL eviction; self-heals here
			continue
		}
		if err != nil {
			return nil, err
		}
		if record.Status != models.SessionStatusActive {
			continue
		}
		if best == nil || record.LastUsedAt.After(best.LastUsedAt) ||
			(record.LastUsedAt.Equal(best.LastUsedAt) && record.ID > best.ID) {
			best = record
		}
	}

	if best == nil {
		return nil, interfaces.ErrSessionNotFound
	}
	return best, nil
}

// Search applies the query using the narrowest available index (owner, then
// identity, then status) before filtering the remaining predicates in memory.
func (s *Service) Search(ctx context.Context, query models.SessionQuery) ([]*models.SessionRecord, error) {
	var candidates []*models.SessionRecord

	switch {
	case query.OwnerID != "":
		records, err := s.loadIDs(ctx, func() ([]string, error) {
			return s.store.MembersByOwner(ctx, query.OwnerID)
		})
		if err != nil {
			return nil, err
		}
		candidates = records
	case query.Identity != "":
		records, err := s.loadIDs(ctx, func() ([]string, error) {
			return s.store.MembersByIdentity(ctx, query.Identity)
		})
		if err != nil {
			return nil, err
		}
		candidates = records
	case query.Status != "":
		records, err := s.loadIDs(ctx, func() ([]string, error) {
			return s.store.MembersByStatus(ctx, query.Status)
		})
		if err != nil {
			return nil, err
		}
		candidates = records
	default:
		records, err := s.store.Scan(ctx)
		if err != nil {
			return nil, err
		}
		candidates = records
	}

	matched := make([]*models.SessionRecord, 0, len(candidates))
	for _, record := range candidates {
		if query.OwnerID != "" && record.OwnerID != query.OwnerID {
			continue
		}
		if query.Identity != "" && record.Identity != query.Identity {
			continue
		}
		if query.Status != "" && record.Status != query.Status {
			continue
		}
		if !query.CreatedAfter.IsZero() && record.CreatedAt.Before(query.CreatedAfter) {
			continue
		}
		if !query.UsedAfter.IsZero() && record.LastUsedAt.Before(query.UsedAfter) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastUsedAt.Equal(matched[j].LastUsedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].LastUsedAt.After(matched[j].LastUsedAt)
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

func (s *Service) loadIDs(ctx context.Context, members func() ([]string, error)) ([]*models.SessionRecord, error) {
	ids, err := members()
	if err != nil {
		return nil, err
	}

	records := make([]*models.SessionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.store.Get(ctx, id)
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ExpireInactive transitions active sessions idle beyond maxAge to expired
// and returns the count transitioned. Calling it again with no intervening
// activity transitions nothing further.
func (s *Service) ExpireInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := s.store.MembersByStatus(ctx, models.SessionStatusActive)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	var sweepErr error

	for _, id := range ids {
		record, err := s.store.Get(ctx, id)
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			sweepErr = err
			continue
		}
		if record.Status != models.SessionStatusActive || record.LastUsedAt.After(cutoff) {
			continue
		}

		expired := models.SessionStatusExpired
		if _, err := s.Update(ctx, id, models.SessionUpdate{Status: &expired}); err != nil {
			if errors.Is(err, interfaces.ErrSessionNotFound) {
				continue
			}
			s.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to expire session")
			sweepErr = err
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info().Int("expired", count).Msg("Inactive sessions expired")
	}
	return count, sweepErr
}

// Remove deletes a record and its index entries. Deletion is terminal, so no
// lock is taken; an in-flight update racing the delete leaves index entries
// that self-heal on the next get miss.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}
