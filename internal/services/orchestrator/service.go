package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
	"github.com/ternarybob/custos/internal/services/tasks"
)

// Service is the orchestration entry point: it resolves "is there already a
// usable session for this owner" before asking the automation backend to run
// a fresh login, and exposes normalized task status lookups.
//
// The reuse check is deliberately not locked against concurrent creates for
// the same owner: two racing Authenticate calls may both launch a task. The
// cost is a redundant automation run, bounded and accepted; owner-level
// locking is not worth the contention it would add.
type Service struct {
	sessions       interfaces.SessionService
	poller         *tasks.Service
	client         interfaces.AutomationClient
	logger         arbor.ILogger
	loginURL       string
	taskTimeout    time.Duration
	reuseThreshold time.Duration
}

// NewService creates a new orchestration service
func NewService(sessions interfaces.SessionService, poller *tasks.Service, client interfaces.AutomationClient, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		sessions:       sessions,
		poller:         poller,
		client:         client,
		logger:         logger,
		loginURL:       config.Automation.LoginURL,
		taskTimeout:    config.Automation.TaskTimeout,
		reuseThreshold: config.Sessions.ReuseThreshold,
	}
}

// Authenticate reuses an active, recently used session for the owner when one
// exists; otherwise it launches a new login task on the automation backend.
// No session record is created yet for a launched task - that happens only
// once the task succeeds, via ResolveTaskCompletion.
func (s *Service) Authenticate(ctx context.Context, ownerID, identity, password string) (*models.AuthOutcome, error) {
	existing, err := s.sessions.GetActiveForOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, interfaces.ErrSessionNotFound) {
		return nil, err
	}

	if existing != nil && time.Since(existing.LastUsedAt) <= s.reuseThreshold {
		if _, err := s.sessions.Touch(ctx, existing.ID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", existing.ID).Msg("Failed to touch reused session")
		}
		s.logger.Info().
			Str("session_id", existing.ID).
			Str("owner_id", ownerID).
			Msg("Reusing active session")
		return &models.AuthOutcome{ReusedSession: true, SessionID: existing.ID}, nil
	}

	resp, err := s.client.StartLoginTask(ctx, &models.LoginTaskRequest{
		Email:        identity,
		Password:     password,
		URL:          s.loginURL,
		BusinessID:   ownerID,
		TimeoutMs:    int(s.taskTimeout.Milliseconds()),
		ReuseSession: true,
	})
	if err != nil {
		return nil, err
	}

	if err := s.poller.Track(ctx, resp.TaskID, ownerID, identity); err != nil {
		// The task is already running; losing the tracking record only costs
		// the progress estimate, so report the launch anyway
		s.logger.Warn().Err(err).Str("task_id", resp.TaskID).Msg("Failed to track launched task")
	}

	s.logger.Info().
		Str("task_id", resp.TaskID).
		Str("owner_id", ownerID).
		Msg("Authentication task started")

	return &models.AuthOutcome{ReusedSession: false, TaskID: resp.TaskID}, nil
}

// GetStatus returns the normalized status for a task. Failed tasks create or
// mutate no session state; a failed login leaves nothing behind.
func (s *Service) GetStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	return s.poller.CheckStatus(ctx, taskID)
}

// ResolveTaskCompletion creates the active session once a poll has revealed a
// succeeded task. Previous active sessions for the owner are retired so only
// the fresh one is ever picked up for reuse.
func (s *Service) ResolveTaskCompletion(ctx context.Context, taskID, ownerID, identity string, material []byte) (*models.SessionRecord, error) {
	record, err := s.sessions.Create(ctx, ownerID, identity, material, models.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for task %s: %w", taskID, err)
	}

	s.retirePrevious(ctx, ownerID, record.ID)

	return record, nil
}

// retirePrevious expires any other active sessions for the owner. One active
// session per owner is a convention, not a structural guarantee, so failures
// here are logged and tolerated.
func (s *Service) retirePrevious(ctx context.Context, ownerID, keepID string) {
	records, err := s.sessions.Search(ctx, models.SessionQuery{
		OwnerID: ownerID,
		Status:  models.SessionStatusActive,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to list previous active sessions")
		return
	}

	expired := models.SessionStatusExpired
	for _, record := range records {
		if record.ID == keepID {
			continue
		}
		if _, err := s.sessions.Update(ctx, record.ID, models.SessionUpdate{Status: &expired}); err != nil {
			s.logger.Warn().Err(err).Str("session_id", record.ID).Msg("Failed to retire previous session")
		}
	}
}

// ReportFailure marks an existing session as broken, e.g. when a profile edit
// discovers its cookies no longer work
func (s *Service) ReportFailure(ctx context.Context, sessionID, detail string) (*models.SessionRecord, error) {
	errStatus := models.SessionStatusError
	return s.sessions.Update(ctx, sessionID, models.SessionUpdate{
		Status:      &errStatus,
		ErrorDetail: &detail,
	})
}

// ExpireInactive runs the inactivity sweep
func (s *Service) ExpireInactive(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.sessions.ExpireInactive(ctx, maxAge)
}

// BackendHealth probes the automation backend
func (s *Service) BackendHealth(ctx context.Context) (*models.BackendHealth, error) {
	return s.client.Health(ctx)
}
