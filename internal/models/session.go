package models

import "time"

// SessionStatus represents the lifecycle state of a browser session
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
	SessionStatusError   SessionStatus = "error"
)

// IsValid reports whether the status is one of the known lifecycle states
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusActive, SessionStatusExpired, SessionStatusError:
		return true
	}
	return false
}

// SessionRecord represents a persisted authenticated browser session.
// CredentialMaterial holds the serialized cookies/storage state captured by the
// automation backend and is owned exclusively by this record.
type SessionRecord struct {
	ID                 string        `json:"id"`
	OwnerID            string        `json:"owner_id"`  // Business the session authenticates on behalf of
	Identity           string        `json:"identity"`  // Login email used by the automation backend
	Status             SessionStatus `json:"status"`
	CredentialMaterial []byte        `json:"credential_material,omitempty"`
	ErrorDetail        string        `json:"error_detail,omitempty"` // Populated only when Status is error
	UseCount           int64         `json:"use_count"`
	CreatedAt          time.Time     `json:"created_at"`
	LastUsedAt         time.Time     `json:"last_used_at"`
}

// Clone returns a deep copy of the record so callers can merge updates without
// mutating the stored instance
func (r *SessionRecord) Clone() *SessionRecord {
	cp := *r
	if r.CredentialMaterial != nil {
		cp.CredentialMaterial = make([]byte, len(r.CredentialMaterial))
		copy(cp.CredentialMaterial, r.CredentialMaterial)
	}
	return &cp
}

// SessionUpdate describes a partial mutation applied to a session record.
// Nil pointer fields are left unchanged by the update path.
type SessionUpdate struct {
	Status             *SessionStatus
	CredentialMaterial []byte
	ErrorDetail        *string
	IncrementUseCount  bool
}

// SessionQuery filters session searches. Empty fields are ignored; the
// lifecycle manager picks the narrowest available index before applying the
// remaining filters in memory.
type SessionQuery struct {
	OwnerID      string
	Identity     string
	Status       SessionStatus
	CreatedAfter time.Time
	UsedAfter    time.Time
	Limit        int
}
