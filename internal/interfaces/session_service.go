package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/custos/internal/models"
)

// ErrLockTimeout is returned when the bounded wait for a session lock expires.
// Distinct from ErrSessionNotFound and from store errors so callers can apply
// backoff specifically on contention.
var ErrLockTimeout = errors.New("timed out waiting for session lock")

// SessionService is the only component permitted to mutate session records.
// It enforces the lock-then-read-modify-write discipline and keeps index
// membership consistent with the status field.
type SessionService interface {
	// Create writes a new session record. No lock is needed because freshly
	// generated ids cannot collide.
	Create(ctx context.Context, ownerID, identity string, material []byte, status models.SessionStatus) (*models.SessionRecord, error)

	// Update applies a partial mutation under lock and refreshes LastUsedAt.
	// Returns ErrSessionNotFound or ErrLockTimeout as distinct conditions.
	Update(ctx context.Context, id string, update models.SessionUpdate) (*models.SessionRecord, error)

	// Touch bumps LastUsedAt and the use counter on a reused session
	Touch(ctx context.Context, id string) (*models.SessionRecord, error)

	// GetActiveForOwner returns the most recently used active session for an
	// owner, or ErrSessionNotFound when no active session exists
	GetActiveForOwner(ctx context.Context, ownerID string) (*models.SessionRecord, error)

	// Get fetches a single record by id
	Get(ctx context.Context, id string) (*models.SessionRecord, error)

	// Search applies the query using the narrowest available index
	Search(ctx context.Context, query models.SessionQuery) ([]*models.SessionRecord, error)

	// ExpireInactive transitions active sessions idle beyond maxAge to
	// expired and returns the count transitioned
	ExpireInactive(ctx context.Context, maxAge time.Duration) (int, error)

	// Remove deletes a record and its index entries. Terminal; no lock taken.
	Remove(ctx context.Context, id string) error
}
