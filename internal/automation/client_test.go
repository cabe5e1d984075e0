package automation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
)

func TestStartLoginTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/google-auth", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task_id":"google_auth_biz1","status":"pending"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	resp, err := client.StartLoginTask(context.Background(), &models.LoginTaskRequest{
		Email:      "a@example.com",
		Password:   "secret",
		BusinessID: "biz1",
	})
	require.NoError(t, err)
	assert.Equal(t, "google_auth_biz1", resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
}

func TestGetTaskStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/task/task-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"task_id": "task-1",
			"status": "completed",
			"result": {"success": true, "session_saved": true, "cookies_count": 12}
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	status, err := client.GetTaskStatus(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	require.NotNil(t, status.Result)
	assert.True(t, status.Result.Success)
	assert.Equal(t, 12, status.Result.CookiesCount)
}

func TestGetTaskStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Task not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.GetTaskStatus(context.Background(), "gone")
	assert.ErrorIs(t, err, interfaces.ErrBackendTaskNotFound)
}

func TestServerErrorsMapToBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.GetTaskStatus(context.Background(), "task-1")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestConnectionErrorMapsToBackendUnavailable(t *testing.T) {
	// Nothing listens here
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))

	_, err := client.GetTaskStatus(context.Background(), "task-1")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, "healthy", health.Status)
}

func TestHealthUnreachableIsNotAnError(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, health.Healthy)
	assert.Equal(t, "unreachable", health.Status)
}

func TestListScreenshots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/screenshot/biz1/task-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"business_id": "biz1",
			"task_id": "task-1",
			"screenshots": ["01_login_page.png", "05_final_state.png"]
		}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	list, err := client.ListScreenshots(context.Background(), "biz1", "task-1")
	require.NoError(t, err)
	assert.Len(t, list.Screenshots, 2)
	assert.Equal(t, "05_final_state.png", list.Screenshots[1])
}
