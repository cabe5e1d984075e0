package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/services/orchestrator"
)

// Service runs the periodic inactivity sweep over stored sessions.
type Service struct {
	orchestrator *orchestrator.Service
	cron         *cron.Cron
	logger       arbor.ILogger
	schedule     string
	maxAge       time.Duration
	mu           sync.Mutex
	running      bool
	sweeping     bool
}

// NewService creates a new scheduler service
func NewService(orch *orchestrator.Service, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		orchestrator: orch,
		cron:         cron.New(),
		logger:       logger,
		schedule:     config.Sessions.SweepSchedule,
		maxAge:       config.Sessions.TTL,
	}
}

// Start registers the sweep and begins the cron loop
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if s.schedule == "" {
		s.logger.Warn().Msg("Session sweep disabled, no schedule configured")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("max_age", s.maxAge.String()).
		Msg("Session sweep scheduler started")

	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Session sweep scheduler stopped")
}

// runSweep executes one sweep, skipping if the previous one is still going
func (s *Service) runSweep() {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous sweep still running, skipping this cycle")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.orchestrator.ExpireInactive(ctx, s.maxAge)
	if err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
		return
	}

	if count > 0 {
		s.logger.Info().Int("expired", count).Msg("Session sweep completed")
	} else {
		s.logger.Debug().Msg("Session sweep completed, nothing to expire")
	}
}
