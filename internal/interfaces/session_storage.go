package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/custos/internal/models"
)

// ErrSessionNotFound is returned when a session id has no stored record
// (possibly expired or evicted)
var ErrSessionNotFound = errors.New("session not found")

// SessionStorage defines durable storage of session records with TTL-based
// expiry and secondary indices by owner, identity and status. Index entries
// carry the same TTL as the record so evicted records never leave dangling
// index members behind.
type SessionStorage interface {
	// Put stores the record and (re)populates all three indices, resetting
	// the TTL on both the record and its index entries. A status, owner or
	// identity change moves index membership atomically with the write.
	Put(ctx context.Context, record *models.SessionRecord) error

	// Get retrieves a record by id, returns ErrSessionNotFound if absent
	Get(ctx context.Context, id string) (*models.SessionRecord, error)

	// MembersByOwner returns the ids of all sessions indexed under an owner
	MembersByOwner(ctx context.Context, ownerID string) ([]string, error)

	// MembersByIdentity returns the ids of all sessions indexed under an identity
	MembersByIdentity(ctx context.Context, identity string) ([]string, error)

	// MembersByStatus returns the ids of all sessions indexed under a status
	MembersByStatus(ctx context.Context, status models.SessionStatus) ([]string, error)

	// Scan returns all stored session records (full-scan fallback for searches
	// with no usable index)
	Scan(ctx context.Context) ([]*models.SessionRecord, error)

	// Remove deletes the record and its entries from all three indices.
	// Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error
}

// TaskStorage tracks launched automation tasks locally. Records are written at
// launch time so the poller can estimate progress from its own start timestamp
// instead of parsing the backend's opaque task id.
type TaskStorage interface {
	Put(ctx context.Context, record *models.TaskRecord) error
	Get(ctx context.Context, taskID string) (*models.TaskRecord, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*models.TaskRecord, error)
	Delete(ctx context.Context, taskID string) error
}

// ErrTaskNotFound is returned when a task id has no local tracking record
var ErrTaskNotFound = errors.New("task not found")

// StorageManager provides access to all storage interfaces backed by a single
// database connection
type StorageManager interface {
	SessionStorage() SessionStorage
	TaskStorage() TaskStorage
	LockManager() LockManager
	Close() error
}
