package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the browser-automation backend.
	DefaultBaseURL = "http://localhost:5055"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client talks to the browser-automation backend over HTTP. The backend owns
// task execution and retention; this client only starts tasks and reads state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new automation backend client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// do performs a request against the backend and decodes the JSON response.
// Connection failures and 5xx responses surface as ErrBackendUnavailable so
// callers can distinguish "backend down" from task-level failures.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("url", c.baseURL+path).
			Msg("Automation backend request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return interfaces.ErrBackendTaskNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", interfaces.ErrBackendUnavailable, resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("automation backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// StartLoginTask launches an asynchronous login task on the backend
func (c *Client) StartLoginTask(ctx context.Context, req *models.LoginTaskRequest) (*models.StartTaskResponse, error) {
	var result models.StartTaskResponse
	if err := c.do(ctx, http.MethodPost, "/v1/google-auth", req, &result); err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info().
			Str("task_id", result.TaskID).
			Str("business_id", req.BusinessID).
			Msg("Login task launched")
	}
	return &result, nil
}

// GetTaskStatus fetches the raw status for a task id
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*models.BackendTaskStatus, error) {
	var result models.BackendTaskStatus
	if err := c.do(ctx, http.MethodGet, "/v1/task/"+taskID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health probes the backend. An unreachable or unhealthy backend is reported
// as a BackendHealth value, never as an error.
func (c *Client) Health(ctx context.Context) (*models.BackendHealth, error) {
	var result models.BackendHealth
	if err := c.do(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("Automation backend health probe failed")
		}
		return &models.BackendHealth{Status: "unreachable", Healthy: false}, nil
	}
	result.Healthy = result.Status == "healthy"
	return &result, nil
}

// ListScreenshots retrieves the artifact references captured for a task
func (c *Client) ListScreenshots(ctx context.Context, businessID, taskID string) (*models.ScreenshotList, error) {
	var result models.ScreenshotList
	if err := c.do(ctx, http.MethodGet, "/v1/screenshot/"+businessID+"/"+taskID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
