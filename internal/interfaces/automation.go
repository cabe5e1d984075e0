package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/custos/internal/models"
)

// ErrBackendUnavailable is returned when the automation backend is unreachable
// or reports itself unhealthy. Surfaced to the caller; no session state is
// mutated on backend failures.
var ErrBackendUnavailable = errors.New("automation backend unavailable")

// ErrBackendTaskNotFound is returned when the backend has no task for the
// given id (the backend prunes completed tasks after its own retention window)
var ErrBackendTaskNotFound = errors.New("task not found on automation backend")

// AutomationClient talks to the remote browser-automation backend over HTTP.
// Task ids are opaque; the backend owns their format and retention.
type AutomationClient interface {
	// StartLoginTask launches an asynchronous login task and returns its id
	StartLoginTask(ctx context.Context, req *models.LoginTaskRequest) (*models.StartTaskResponse, error)

	// GetTaskStatus fetches the raw status for a task id
	GetTaskStatus(ctx context.Context, taskID string) (*models.BackendTaskStatus, error)

	// Health probes the backend. An unhealthy response is returned as a valid
	// BackendHealth value, not an error.
	Health(ctx context.Context) (*models.BackendHealth, error)

	// ListScreenshots retrieves the artifact references captured for a task.
	// Best-effort; callers log failures and carry on.
	ListScreenshots(ctx context.Context, businessID, taskID string) (*models.ScreenshotList, error)
}
