package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
	"github.com/ternarybob/custos/internal/services/sessions"
	"github.com/ternarybob/custos/internal/services/tasks"
)

// In-memory session storage, same operation-level atomicity as the real one.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.SessionRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.SessionRecord)}
}

func (m *memStore) Put(ctx context.Context, record *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record.Clone()
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, interfaces.ErrSessionNotFound
	}
	return record.Clone(), nil
}

func (m *memStore) MembersByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return m.members(func(r *models.SessionRecord) bool { return r.OwnerID == ownerID })
}

func (m *memStore) MembersByIdentity(ctx context.Context, identity string) ([]string, error) {
	return m.members(func(r *models.SessionRecord) bool { return r.Identity == identity })
}

func (m *memStore) MembersByStatus(ctx context.Context, status models.SessionStatus) ([]string, error) {
	return m.members(func(r *models.SessionRecord) bool { return r.Status == status })
}

func (m *memStore) members(match func(*models.SessionRecord) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, record := range m.records {
		if match(record) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) Scan(ctx context.Context) ([]*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := []*models.SessionRecord{}
	for _, record := range m.records {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (m *memStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]string)}
}

func (m *memLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", interfaces.ErrLockHeld
	}
	token := common.NewLockToken()
	m.held[key] = token
	return token, nil
}

func (m *memLocks) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.held[key]; ok && current == token {
		delete(m.held, key)
	}
	return nil
}

type memTaskStore struct {
	mu      sync.Mutex
	records map[string]*models.TaskRecord
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{records: make(map[string]*models.TaskRecord)}
}

func (m *memTaskStore) Put(ctx context.Context, record *models.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[record.TaskID] = &clone
	return nil
}

func (m *memTaskStore) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[taskID]
	if !ok {
		return nil, interfaces.ErrTaskNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *memTaskStore) GetByOwner(ctx context.Context, ownerID string) ([]*models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := []*models.TaskRecord{}
	for _, record := range m.records {
		if record.OwnerID == ownerID {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

func (m *memTaskStore) Delete(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, taskID)
	return nil
}

// stubClient counts launches and serves scripted statuses.
type stubClient struct {
	mu       sync.Mutex
	launches int
	statuses map[string]*models.BackendTaskStatus
}

func (c *stubClient) StartLoginTask(ctx context.Context, req *models.LoginTaskRequest) (*models.StartTaskResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.launches++
	return &models.StartTaskResponse{TaskID: "task-" + req.BusinessID, Status: models.BackendStatusPending}, nil
}

func (c *stubClient) GetTaskStatus(ctx context.Context, taskID string) (*models.BackendTaskStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[taskID]
	if !ok {
		return nil, interfaces.ErrBackendTaskNotFound
	}
	return status, nil
}

func (c *stubClient) Health(ctx context.Context) (*models.BackendHealth, error) {
	return &models.BackendHealth{Status: "healthy", Healthy: true}, nil
}

func (c *stubClient) ListScreenshots(ctx context.Context, businessID, taskID string) (*models.ScreenshotList, error) {
	return &models.ScreenshotList{BusinessID: businessID, TaskID: taskID}, nil
}

func (c *stubClient) launchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.launches
}

func newTestOrchestrator(t *testing.T) (*Service, interfaces.SessionService, *stubClient) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	logger := arbor.NewLogger()

	sessionSvc := sessions.NewService(newMemStore(), newMemLocks(), &cfg.Sessions, logger)
	client := &stubClient{statuses: map[string]*models.BackendTaskStatus{}}
	poller := tasks.NewService(client, newMemTaskStore(), logger)

	return NewService(sessionSvc, poller, client, cfg, logger), sessionSvc, client
}

func TestAuthenticateLaunchesTaskWhenNoSession(t *testing.T) {
	orch, _, client := newTestOrchestrator(t)
	ctx := context.Background()

	outcome, err := orch.Authenticate(ctx, "biz-1", "a@example.com", "secret")
	require.NoError(t, err)
	assert.False(t, outcome.ReusedSession)
	assert.Equal(t, "task-biz-1", outcome.TaskID)
	assert.Empty(t, outcome.SessionID)
	assert.Equal(t, 1, client.launchCount())

	// A launched task creates no session until completion is resolved
	status, err := orch.GetStatus(ctx, outcome.TaskID)
	assert.ErrorIs(t, err, interfaces.ErrBackendTaskNotFound)
	assert.Nil(t, status)
}

func TestAuthenticateReusesActiveSession(t *testing.T) {
	orch, sessionSvc, client := newTestOrchestrator(t)
	ctx := context.Background()

	created, err := sessionSvc.Create(ctx, "biz-1", "a@example.com", []byte("state"), models.SessionStatusActive)
	require.NoError(t, err)

	outcome, err := orch.Authenticate(ctx, "biz-1", "a@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, outcome.ReusedSession)
	assert.Equal(t, created.ID, outcome.SessionID)
	assert.Equal(t, 0, client.launchCount())

	// Reuse bumps the use counter
	got, err := sessionSvc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UseCount)
}

func TestAuthenticateIgnoresNonActiveSessions(t *testing.T) {
	orch, sessionSvc, client := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := sessionSvc.Create(ctx, "biz-1", "a@example.com", nil, models.SessionStatusExpired)
	require.NoError(t, err)
	_, err = sessionSvc.Create(ctx, "biz-1", "a@example.com", nil, models.SessionStatusError)
	require.NoError(t, err)

	outcome, err := orch.Authenticate(ctx, "biz-1", "a@example.com", "secret")
	require.NoError(t, err)
	assert.False(t, outcome.ReusedSession)
	assert.Equal(t, 1, client.launchCount())
}

// Two concurrent authenticates for the same owner may both launch tasks.
// That is the accepted outcome; the test pins down that neither call fails
// and no session state appears as a side effect.
func TestConcurrentAuthenticateBothSucceed(t *testing.T) {
	orch, sessionSvc, _ := newTestOrchestrator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]*models.AuthOutcome, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = orch.Authenticate(ctx, "biz-1", "a@example.com", "secret")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		assert.False(t, outcomes[i].ReusedSession)
		assert.NotEmpty(t, outcomes[i].TaskID)
	}

	_, err := sessionSvc.GetActiveForOwner(ctx, "biz-1")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

func TestResolveTaskCompletionCreatesSessionAndRetiresOld(t *testing.T) {
	orch, sessionSvc, _ := newTestOrchestrator(t)
	ctx := context.Background()

	stale, err := sessionSvc.Create(ctx, "biz-1", "a@example.com", []byte("old"), models.SessionStatusActive)
	require.NoError(t, err)

	record, err := orch.ResolveTaskCompletion(ctx, "task-1", "biz-1", "a@example.com", []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, record.Status)
	assert.Equal(t, []byte("fresh"), record.CredentialMaterial)

	// The old session is retired, the new one is what reuse now finds
	oldRecord, err := sessionSvc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusExpired, oldRecord.Status)

	active, err := sessionSvc.GetActiveForOwner(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, active.ID)
}

func TestGetStatusDelegates(t *testing.T) {
	orch, _, client := newTestOrchestrator(t)
	ctx := context.Background()

	client.statuses["task-1"] = &models.BackendTaskStatus{
		TaskID: "task-1",
		Status: models.BackendStatusCompleted,
		Result: &models.BackendTaskResult{Success: false, Error: "CAPTCHA required"},
	}

	status, err := orch.GetStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateFailed, status.State)
	assert.Equal(t, models.ErrCodeCaptchaChallenge, status.ErrorCode)
}

func TestReportFailureMarksSession(t *testing.T) {
	orch, sessionSvc, _ := newTestOrchestrator(t)
	ctx := context.Background()

	record, err := sessionSvc.Create(ctx, "biz-1", "a@example.com", nil, models.SessionStatusActive)
	require.NoError(t, err)

	updated, err := orch.ReportFailure(ctx, record.ID, "cookies rejected by remote")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusError, updated.Status)
	assert.Equal(t, "cookies rejected by remote", updated.ErrorDetail)

	// An errored session is never offered for reuse
	_, err = sessionSvc.GetActiveForOwner(ctx, "biz-1")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}
