package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/config"
	"naturelife-cert/internal/pipeline"
)

// ErrBatchRunning is returned by RunOnce while another batch is in progress
var ErrBatchRunning = errors.New("a batch is already running")

// Runner runs one inbox batch
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Status is a snapshot of the scheduler state
type Status struct {
	Running         bool              `json:"running"`
	IntervalMinutes int               `json:"interval_minutes"`
	NextRun         *time.Time        `json:"next_run,omitempty"`
	LastRun         *time.Time        `json:"last_run,omitempty"`
	LastSummary     *pipeline.Summary `json:"last_summary,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
}

// Scheduler polls the inbox periodically. At most one batch runs at a time.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	runner    Runner
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex

	batch       sync.Mutex
	lastRun     time.Time
	lastSummary *pipeline.Summary
	lastErr     error
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger()))),
		),
		config: cfg,
		runner: runner,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	// Schedule the job to run every N minutes
	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.processInbox)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler. A batch in progress finishes its current
// message and then ends.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) processInbox() {
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping processing cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.run(ctx); err != nil && !errors.Is(err, ErrBatchRunning) {
		logrus.Errorf("Inbox processing cycle failed: %v", err)
	}
}

func (s *Scheduler) run(ctx context.Context) (*pipeline.Summary, error) {
	if !s.batch.TryLock() {
		return nil, ErrBatchRunning
	}
	defer s.batch.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	logrus.Info("Starting inbox processing cycle")
	startTime := time.Now()

	summary, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.lastRun = startTime
	s.lastSummary = summary
	s.lastErr = err
	s.mu.Unlock()

	logrus.Infof("Inbox processing cycle completed in %v", time.Since(startTime))
	return summary, err
}

// RunOnce runs one batch immediately (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Summary, error) {
	logrus.Info("Running inbox processing once")
	return s.run(ctx)
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// GetLastRun returns the time the last batch started
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Status returns a snapshot for the status endpoint
func (s *Scheduler) Status() Status {
	next := s.GetNextRun()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Running:         s.isRunning,
		IntervalMinutes: s.config.IntervalMinutes,
		LastSummary:     s.lastSummary,
	}
	if !next.IsZero() {
		st.NextRun = &next
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Wait waits for a batch in progress to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
