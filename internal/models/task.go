package models

import "time"

// TaskState represents the normalized state of an automation task
type TaskState string

const (
	TaskStateInProgress TaskState = "in_progress"
	TaskStateSucceeded  TaskState = "succeeded"
	TaskStateFailed     TaskState = "failed"
)

// IsTerminal reports whether the task has reached a final state
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// Stable error codes assigned to failed login tasks. The poller maps the
// backend's free-text failure vocabulary onto these codes so callers can show
// actionable messages without parsing error strings themselves.
const (
	ErrCodeWrongPassword        = "WRONG_PASSWORD"
	ErrCodeEmailNotFound        = "EMAIL_NOT_FOUND"
	ErrCodeSuspiciousActivity   = "SUSPICIOUS_ACTIVITY"
	ErrCodeVerificationRequired = "VERIFICATION_REQUIRED"
	ErrCodeTwoFactorRequired    = "TWO_FACTOR_REQUIRED"
	ErrCodeAccountDisabled      = "ACCOUNT_DISABLED"
	ErrCodeTooManyAttempts      = "TOO_MANY_ATTEMPTS"
	ErrCodeCaptchaChallenge     = "CAPTCHA_CHALLENGE"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeAuthFailed           = "AUTH_FAILED"
)

// TaskStatus is the normalized view of an automation task returned to callers.
// ProgressEstimate is a UX heuristic only and never authoritative; it stays
// below 100 until the backend reports a terminal state.
type TaskStatus struct {
	TaskID           string    `json:"task_id"`
	OwnerID          string    `json:"owner_id"`
	State            TaskState `json:"state"`
	ProgressEstimate int       `json:"progress_estimate"`
	Message          string    `json:"message,omitempty"`
	Error            string    `json:"error,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Artifact         string    `json:"artifact,omitempty"` // Screenshot reference on terminal states
	CreatedAt        time.Time `json:"created_at,omitempty"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
}

// TaskRecord tracks a launched automation task locally so progress estimation
// and completion resolution never depend on the backend's opaque id format
type TaskRecord struct {
	TaskID    string    `json:"task_id" badgerhold:"key"`
	OwnerID   string    `json:"owner_id" badgerholdIndex:"OwnerID"`
	Identity  string    `json:"identity"`
	StartedAt time.Time `json:"started_at"`
}

// AuthOutcome is the result of an authenticate call: either an existing
// session was reused, or a new automation task was launched.
type AuthOutcome struct {
	ReusedSession bool   `json:"reused_session"`
	SessionID     string `json:"session_id,omitempty"`
	TaskID        string `json:"task_id,omitempty"`
}
