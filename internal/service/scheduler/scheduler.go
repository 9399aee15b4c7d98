package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/model"
)

// ErrAlreadyRunning is returned by Start when the schedule is active
var ErrAlreadyRunning = errors.New("scheduler is already running")

// Trigger starts a forwarding run
type Trigger interface {
	Trigger(ctx context.Context, req config.RunRequest) (*model.RunSummary, error)
}

// Scheduler runs the forwarder for the current day on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	runner    Trigger
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// New creates a new scheduler
func New(cfg *config.SchedulerConfig, runner Trigger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		config: cfg,
		runner: runner,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrAlreadyRunning
	}

	// A stopped scheduler gets a fresh cron and context so it can be restarted.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.cron = cron.New(cron.WithSeconds())
	}

	entryID, err := s.cron.AddFunc(s.config.Cron, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with schedule: %s", s.config.Cron)
	return nil
}

// Stop stops the scheduler and cancels an in-flight scheduled run. The lock
// is released before waiting so a job finishing up can still read state.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	c := s.cron
	s.isRunning = false
	s.mu.Unlock()

	ctx := c.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs today's forwarding immediately (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (*model.RunSummary, error) {
	logrus.Info("Running scheduled forwarding once")
	return s.run(ctx)
}

// Schedule returns the cron schedule of the daily run
func (s *Scheduler) Schedule() string {
	return s.config.Cron
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

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}

	entry := s.cron.Entry(s.entryID)
	return entry.Prev
}

// Wait waits for in-flight scheduled runs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
