package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const scheduledSyncTimeout = 2 * time.Minute

// SyncRunner executes one scheduled sync without a user session
type SyncRunner interface {
	SyncScheduled(ctx context.Context, id string) error
}

// SyncScheduler runs API integration syncs on their cron schedules
type SyncScheduler struct {
	repo   IntegrationRepository
	logger *zap.Logger

	scheduler  *cron.Cron
	runner     SyncRunner
	jobEntries map[string]cron.EntryID
	mu         sync.RWMutex
}

func NewSyncScheduler(repo IntegrationRepository, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		repo:       repo,
		logger:     logger,
		jobEntries: make(map[string]cron.EntryID),
	}
}

// ValidateSchedule accepts standard five-field cron expressions and descriptors like @hourly
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

func (s *SyncScheduler) Start(ctx context.Context, runner SyncRunner) error {
	s.mu.Lock()
	s.scheduler = cron.New()
	s.runner = runner
	s.mu.Unlock()

	integrations, err := s.repo.FindScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled integrations: %w", err)
	}

	for i := range integrations {
		if err := s.Register(&integrations[i]); err != nil {
			s.logger.Warn("Failed to schedule integration sync",
				zap.String("integration_id", integrations[i].ID.Hex()), zap.Error(err))
		}
	}

	s.scheduler.Start()
	s.logger.Info("Sync scheduler started", zap.Int("jobs", s.Len()))
	return nil
}

func (s *SyncScheduler) Stop() {
	s.mu.RLock()
	scheduler := s.scheduler
	s.mu.RUnlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// Register replaces any existing job for the integration. Integrations that are not
// scheduled API sources are only unregistered.
func (s *SyncScheduler) Register(integration *Integration) error {
	id := integration.ID.Hex()
	s.Unregister(id)

	if integration.Type != TypeAPI || integration.SyncSchedule == "" || integration.Status == StatusDisabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return fmt.Errorf("scheduler not initialized")
	}

	entryID, err := s.scheduler.AddFunc(integration.SyncSchedule, func() { s.run(id) })
	if err != nil {
		return fmt.Errorf("failed to add sync job to scheduler: %w", err)
	}
	s.jobEntries[id] = entryID
	return nil
}

func (s *SyncScheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobEntries[id]; exists {
		s.scheduler.Remove(entryID)
		delete(s.jobEntries, id)
	}
}

func (s *SyncScheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobEntries)
}

func (s *SyncScheduler) run(id string) {
	s.mu.RLock()
	runner := s.runner
	s.mu.RUnlock()
	if runner == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), scheduledSyncTimeout)
	defer cancel()

	if err := runner.SyncScheduled(ctx, id); err != nil {
		s.logger.Warn("Scheduled sync failed", zap.String("integration_id", id), zap.Error(err))
	}
}
