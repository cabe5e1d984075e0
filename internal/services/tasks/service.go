package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
)

// Progress heuristic constants. The backend exposes no native progress
// signal, so in-progress tasks get a linear estimate from the locally
// recorded start time. UX only, never authoritative, never 100 before a
// terminal state.
const (
	progressGrace     = 5 * time.Second
	progressFloor     = 25
	progressCap       = 85
	progressPerSecond = 3
)

// errorClass maps a stable error code to the backend's free-text failure
// vocabulary. Ordered: classification walks the slice top to bottom so a
// fixed payload always yields the same code.
type errorClass struct {
	code       string
	indicators []string
}

var errorClasses = []errorClass{
	{models.ErrCodeWrongPassword, []string{
		"password is incorrect",
		"wrong password",
		"wrong_password",
		"password was incorrect",
		"check your password",
	}},
	{models.ErrCodeEmailNotFound, []string{
		"couldn't find your google account",
		"couldn't find account",
		"email not found",
		"email_not_found",
		"no account found",
	}},
	{models.ErrCodeSuspiciousActivity, []string{
		"unusual activity",
		"suspicious activity",
		"suspicious_activity",
		"unusual sign in",
		"suspicious login attempt",
		"security alert",
	}},
	{models.ErrCodeTwoFactorRequired, []string{
		"2-step verification",
		"two-factor",
		"two_factor",
		"2fa",
		"enter verification code",
		"enter the code",
	}},
	{models.ErrCodeVerificationRequired, []string{
		"verification required",
		"verification_required",
		"verify it's you",
		"confirm your identity",
		"additional verification",
	}},
	{models.ErrCodeAccountDisabled, []string{
		"account disabled",
		"account_disabled",
		"account has been disabled",
		"account suspended",
	}},
	{models.ErrCodeTooManyAttempts, []string{
		"too many failed attempts",
		"too_many_attempts",
		"try again later",
		"temporary lock",
		"account is locked",
	}},
	{models.ErrCodeCaptchaChallenge, []string{
		"captcha",
		"security check",
		"prove you're not a robot",
	}},
	{models.ErrCodeTimeout, []string{
		"timed out",
		"timeout",
	}},
}

// ClassifyFailure assigns a stable error code to a failure payload. Purely
// substring-based and deterministic for a fixed input; unknown payloads fall
// back to the generic authentication-failed code.
func ClassifyFailure(text string) string {
	lower := strings.ToLower(text)
	for _, class := range errorClasses {
		for _, indicator := range class.indicators {
			if strings.Contains(lower, indicator) {
				return class.code
			}
		}
	}
	return models.ErrCodeAuthFailed
}

// Service implements the task status poller: it records launched tasks,
// queries the automation backend and normalizes the raw status into the
// three-state TaskStatus model.
type Service struct {
	client interfaces.AutomationClient
	tasks  interfaces.TaskStorage
	logger arbor.ILogger
}

// NewService creates a new task status service
func NewService(client interfaces.AutomationClient, tasks interfaces.TaskStorage, logger arbor.ILogger) *Service {
	return &Service{
		client: client,
		tasks:  tasks,
		logger: logger,
	}
}

// Track records a launched task with its own start timestamp so progress
// estimation never depends on the backend's opaque id format
func (s *Service) Track(ctx context.Context, taskID, ownerID, identity string) error {
	return s.tasks.Put(ctx, &models.TaskRecord{
		TaskID:    taskID,
		OwnerID:   ownerID,
		Identity:  identity,
		StartedAt: time.Now(),
	})
}

// CheckStatus queries the backend for a task and normalizes the result.
// Backend errors propagate untouched; no session state is mutated here.
func (s *Service) CheckStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	raw, err := s.client.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}

	tracked, err := s.tasks.Get(ctx, taskID)
	if err != nil && !errors.Is(err, interfaces.ErrTaskNotFound) {
		return nil, err
	}

	status := &models.TaskStatus{
		TaskID:  taskID,
		Message: raw.Message,
	}
	if tracked != nil {
		status.OwnerID = tracked.OwnerID
	}
	status.CreatedAt = parseBackendTime(raw.CreatedAt)
	status.CompletedAt = parseBackendTime(raw.CompletedAt)

	switch raw.Status {
	case models.BackendStatusCompleted:
		if raw.Result != nil && raw.Result.Success {
			status.State = models.TaskStateSucceeded
			status.ProgressEstimate = 100
			if raw.Result.Message != "" {
				status.Message = raw.Result.Message
			}
		} else {
			s.fillFailure(status, raw)
		}
	case models.BackendStatusFailed:
		s.fillFailure(status, raw)
	default:
		// pending or any unknown transitional state
		status.State = models.TaskStateInProgress
		status.ProgressEstimate = s.estimateProgress(tracked)
	}

	if status.State.IsTerminal() {
		s.attachArtifact(ctx, status, raw, tracked)
	}

	return status, nil
}

// fillFailure marks the status failed and assigns the stable error code,
// preferring the backend's own code when it matches a known class
func (s *Service) fillFailure(status *models.TaskStatus, raw *models.BackendTaskStatus) {
	status.State = models.TaskStateFailed
	status.ProgressEstimate = 100

	var text strings.Builder
	if raw.Result != nil {
		status.Error = raw.Result.Error
		text.WriteString(raw.Result.ErrorCode)
		text.WriteString(" ")
		text.WriteString(raw.Result.Error)
		text.WriteString(" ")
		text.WriteString(raw.Result.Details)
		text.WriteString(" ")
	}
	text.WriteString(raw.Message)

	status.ErrorCode = ClassifyFailure(text.String())
	if status.Error == "" {
		status.Error = raw.Message
	}
	if status.Error == "" {
		status.Error = "authentication failed"
	}
}

// estimateProgress derives the in-progress estimate from the locally tracked
// start time. Without a tracking record the floor is reported.
func (s *Service) estimateProgress(tracked *models.TaskRecord) int {
	if tracked == nil {
		return progressFloor
	}

	elapsed := time.Since(tracked.StartedAt)
	if elapsed <= progressGrace {
		return progressFloor
	}

	estimate := progressFloor + int((elapsed-progressGrace).Seconds())*progressPerSecond
	if estimate > progressCap {
		return progressCap
	}
	return estimate
}

// attachArtifact resolves a screenshot reference for terminal states. The
// primary status response usually carries one; the listing endpoint is a
// best-effort fallback whose failure never changes the reported state.
func (s *Service) attachArtifact(ctx context.Context, status *models.TaskStatus, raw *models.BackendTaskStatus, tracked *models.TaskRecord) {
	if raw.Result != nil && raw.Result.Screenshot != "" {
		status.Artifact = raw.Result.Screenshot
		return
	}
	if tracked == nil {
		return
	}

	list, err := s.client.ListScreenshots(ctx, tracked.OwnerID, status.TaskID)
	if err != nil {
		s.logger.Debug().Err(err).Str("task_id", status.TaskID).Msg("Screenshot lookup failed")
		return
	}
	if len(list.Screenshots) > 0 {
		status.Artifact = list.Screenshots[len(list.Screenshots)-1]
	}
}

func parseBackendTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
