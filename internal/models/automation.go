package models

// Wire types for the remote browser-automation backend. The backend is an
// opaque collaborator reachable over HTTP; these mirror its JSON payloads.

// LoginTaskRequest starts a new login task on the automation backend
type LoginTaskRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	URL          string `json:"url"`
	BusinessID   string `json:"businessId"`
	TimeoutMs    int    `json:"timeout,omitempty"`
	ReuseSession bool   `json:"reuseSession"`
}

// StartTaskResponse is the backend's acknowledgement of a launched task
type StartTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Backend task status vocabulary
const (
	BackendStatusPending   = "pending"
	BackendStatusCompleted = "completed"
	BackendStatusFailed    = "failed"
)

// BackendTaskResult carries the outcome payload of a completed or failed task
type BackendTaskResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
	SessionSaved bool   `json:"session_saved,omitempty"`
	CookiesCount int    `json:"cookies_count,omitempty"`
	Details      string `json:"details,omitempty"`
}

// BackendTaskStatus is the backend's raw task status response
type BackendTaskStatus struct {
	TaskID      string             `json:"task_id"`
	Status      string             `json:"status"`
	Result      *BackendTaskResult `json:"result,omitempty"`
	Message     string             `json:"message,omitempty"`
	CreatedAt   string             `json:"created_at,omitempty"`
	CompletedAt string             `json:"completed_at,omitempty"`
}

// BackendHealth is the backend's health probe response. Unhealthy is a valid,
// non-exceptional answer that callers surface rather than crash on.
type BackendHealth struct {
	Status  string `json:"status"`
	Healthy bool   `json:"-"`
}

// ScreenshotList enumerates the evidence artifacts captured during a task
type ScreenshotList struct {
	BusinessID  string   `json:"business_id"`
	TaskID      string   `json:"task_id"`
	Screenshots []string `json:"screenshots"`
	Directory   string   `json:"directory,omitempty"`
}
