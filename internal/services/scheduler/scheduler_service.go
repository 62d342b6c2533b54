package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

// jobEntry holds a registered job and its run bookkeeping.
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs registered maintenance jobs on cron schedules. The app
// wires in the upstream health sweep and the vector index flush.
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler service. Jobs are registered before Start.
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// Start begins executing registered jobs on their schedules.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return common.E(common.KindPrecondition, "scheduler.start", "scheduler already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Int("job_count", len(s.jobs)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler. Jobs already executing run to completion.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	ctx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for running jobs to finish")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterJob registers a handler to run on the given cron schedule.
func (s *Service) RegisterJob(name string, schedule string, description string, handler func() error) error {
	const op = "scheduler.register_job"

	if name == "" {
		return common.E(common.KindInvalidInput, op, "job name cannot be empty")
	}
	if handler == nil {
		return common.E(common.KindInvalidInput, op, "job handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return common.E(common.KindInvalidInput, op, fmt.Sprintf("job %s already registered", name))
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return common.Wrapf(common.KindInvalidInput, op, err, "invalid schedule %q", schedule)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

// GetJobStatus returns the status of a specific job.
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, common.E(common.KindNotFound, "scheduler.get_job_status",
			fmt.Sprintf("job %s not found", name))
	}
	return s.statusLocked(entry), nil
}

// GetAllJobStatuses returns the status of every registered job.
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = s.statusLocked(entry)
	}
	return statuses
}

// statusLocked snapshots a job entry. Caller holds s.mu.
func (s *Service) statusLocked(entry *jobEntry) *interfaces.JobStatus {
	status := &interfaces.JobStatus{
		Name:        entry.name,
		Enabled:     true,
		Schedule:    entry.schedule,
		Description: entry.description,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}
	if entry.lastRun != nil {
		t := *entry.lastRun
		status.LastRun = &t
	}
	if s.running {
		next := s.cron.Entry(entry.cronID).Next
		if !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// executeJob runs one job, skipping the tick if the previous run is
// still in flight.
func (s *Service) executeJob(name string) {
	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists || entry.isRunning {
		s.mu.Unlock()
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.mu.Unlock()

	start := time.Now()
	err := runJob(handler)
	elapsed := time.Since(start)

	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &start
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job_name", name).
			Str("duration", elapsed.String()).
			Msg("Scheduled job failed")
		return
	}
	s.logger.Debug().
		Str("job_name", name).
		Str("duration", elapsed.String()).
		Msg("Scheduled job completed")
}

// runJob invokes a handler with panic containment.
func runJob(handler func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.E(common.KindInternal, "scheduler.run_job", fmt.Sprintf("job panicked: %v", r))
		}
	}()
	return handler()
}
