// Package scheduler runs the scenario periodically on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// RunFunc executes one scenario run
type RunFunc func(ctx context.Context) error

// Stats summarises scheduled activity
type Stats struct {
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	Skipped  int       `json:"skipped"`
	LastRun  time.Time `json:"last_run"`
	NextRun  time.Time `json:"next_run"`
}

// Scheduler triggers RunFunc on a six-field cron schedule. A tick that fires while the
// previous run is still in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	timeout time.Duration
	logger  arbor.ILogger

	mu           sync.Mutex
	running      bool
	isProcessing bool
	entryID      cron.EntryID
	stats        Stats
	baseCtx      context.Context
	cancel       context.CancelFunc
}

// New creates a scheduler; each run is bounded by timeout
func New(run RunFunc, timeout time.Duration, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		run:     run,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers spec and begins triggering runs
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", spec).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts triggering, cancels an in-flight run and waits for it until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop timed out: %w", ctx.Err())
	}
}

// Stats returns a snapshot of scheduled activity
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	if s.running {
		stats.NextRun = s.cron.Entry(s.entryID).Next
	}
	return stats
}

// tick runs the scenario unless a previous run is still going
func (s *Scheduler) tick() {
	// Panic recovery to keep the scheduler alive
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in scheduled run")
			s.finish(fmt.Errorf("panic: %v", r))
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.stats.Skipped++
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous scheduled run still in progress, skipping tick")
		return
	}
	s.isProcessing = true
	s.stats.LastRun = time.Now()
	parent := s.baseCtx
	s.mu.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	err := s.run(ctx)
	s.finish(err)
}

func (s *Scheduler) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isProcessing {
		return
	}
	s.isProcessing = false
	s.stats.Runs++
	if err != nil {
		s.stats.Failures++
		s.logger.Warn().Err(err).Msg("Scheduled run failed")
		return
	}
	s.logger.Debug().Msg("Scheduled run passed")
}
