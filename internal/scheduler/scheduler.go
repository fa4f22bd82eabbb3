package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Syncer runs one remote voice-snapshot refresh. Satisfied by the voice
// sync service (avoids import cycle).
type Syncer interface {
	Sync(ctx context.Context) (*schema.SyncRun, error)
}

// Scheduler re-syncs the voice-record snapshot on a cron schedule. Standard
// five-field expressions, minute resolution.
type Scheduler struct {
	syncer Syncer
	parser cron.Parser
	spec   string
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	nextMu  sync.Mutex
	nextRun time.Time

	inflightMu sync.Mutex
	inflight   bool // a sync is currently executing (dedup)
}

// NewScheduler creates a scheduler that triggers syncer per cronSpec.
func NewScheduler(syncer Syncer, cronSpec string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		syncer: syncer,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		spec:   cronSpec,
		logger: logger,
	}
}

// Start validates the cron expression and launches the background loop with
// a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	next, err := s.CalculateNextRun(s.spec, time.Now().UTC())
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.setNextRun(next)

	go s.loop(schedCtx)
	s.logger.Info("sync scheduler started",
		slog.String("cron", s.spec),
		slog.Time("next_run", next),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs a sync when the scheduled time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	if now.Before(s.NextRun()) {
		return
	}

	next, err := s.CalculateNextRun(s.spec, now)
	if err != nil {
		s.logger.Error("failed to advance sync schedule", slog.String("error", err.Error()))
		return
	}
	s.setNextRun(next)

	s.runSync(ctx)
}

// RunNow triggers a sync immediately, outside the cron schedule. A no-op
// when a sync is already executing.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runSync(ctx)
}

func (s *Scheduler) runSync(ctx context.Context) {
	if !s.tryAcquire() {
		s.logger.Warn("sync already in flight, skipping trigger")
		return
	}
	defer s.release()

	run, err := s.syncer.Sync(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled sync completed",
		slog.String("run_id", run.ID),
		slog.Int("records", run.RecordCount),
	)
}

// tryAcquire returns true and marks a sync as in-flight if none is running.
func (s *Scheduler) tryAcquire() bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *Scheduler) release() {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflight = false
}

// NextRun reports the next scheduled sync time.
func (s *Scheduler) NextRun() time.Time {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	s.nextRun = t
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("sync scheduler stopped")
	return nil
}
