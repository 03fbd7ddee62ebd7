package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RemoteService is the slice of the backend client the synchronizer and the
// dispatcher depend on.
type RemoteService interface {
	FetchStatusCounts(ctx context.Context) (StatusCounts, error)
	FetchTaskList(ctx context.Context) ([]Task, error)
	FetchConfig(ctx context.Context) (AppConfig, error)
}

// HistorySink receives one status-count sample per successful refresh cycle.
type HistorySink interface {
	RecordStatusSample(ctx context.Context, counts StatusCounts, at time.Time) error
}

// CountsObserver is notified with the previous and the freshly applied
// counters after each successful cycle.
type CountsObserver interface {
	ObserveCounts(prev, curr StatusCounts, hadPrev bool)
}

// Synchronizer keeps the local state within one poll interval of backend
// truth. Each cycle issues the three queries concurrently and applies their
// results as one atomic snapshot; a cycle that fails anywhere applies nothing.
// Overlapping cycles apply in completion order, last write wins.
type Synchronizer struct {
	remote   RemoteService
	state    *State
	history  HistorySink
	observer CountsObserver
	logger   *slog.Logger
	interval time.Duration

	cron *cron.Cron
	ctx  context.Context

	applyMu sync.Mutex
	closed  bool
}

// NewSynchronizer constructs a synchronizer. history and observer may be nil.
func NewSynchronizer(remote RemoteService, state *State, history HistorySink, observer CountsObserver, logger *slog.Logger, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Synchronizer{
		remote:   remote,
		state:    state,
		history:  history,
		observer: observer,
		logger:   logger,
		interval: interval,
		cron:     cron.New(),
	}
}

// Start schedules the periodic refresh and runs one cycle immediately so the
// console is not empty until the first tick. Periodic-cycle failures are
// swallowed: the previous snapshot stays visible and the next tick proceeds.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.ctx = ctx
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Refresh(s.ctx); err != nil {
			s.logger.Debug("background refresh failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	s.cron.Start()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial refresh failed", "err", err)
	}
	return nil
}

// Close stops the refresh schedule. In-flight cycles are left to complete and
// their results are discarded at the apply step.
func (s *Synchronizer) Close() context.Context {
	s.applyMu.Lock()
	s.closed = true
	s.applyMu.Unlock()
	return s.cron.Stop()
}

// Refresh runs one full cycle now and returns its error. The dispatcher uses
// it for the immediate out-of-cycle refresh after a successful action, where
// the failure is surfaced to the operator.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	var (
		wg sync.WaitGroup

		tasks    []Task
		tasksErr error
		counts   StatusCounts
		countErr error
		cfg      AppConfig
		cfgErr   error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		tasks, tasksErr = s.remote.FetchTaskList(ctx)
	}()
	go func() {
		defer wg.Done()
		counts, countErr = s.remote.FetchStatusCounts(ctx)
	}()
	go func() {
		defer wg.Done()
		cfg, cfgErr = s.remote.FetchConfig(ctx)
	}()
	wg.Wait()

	for _, err := range []error{tasksErr, countErr, cfgErr} {
		if err != nil {
			return err
		}
	}

	snap := Snapshot{
		Tasks:     tasks,
		Counts:    counts,
		Config:    cfg,
		FetchedAt: time.Now().UTC(),
	}

	s.applyMu.Lock()
	if s.closed {
		s.applyMu.Unlock()
		return nil
	}
	prev, hadPrev := s.state.Snapshot()
	s.state.ApplySnapshot(snap)
	s.applyMu.Unlock()

	if s.observer != nil {
		s.observer.ObserveCounts(prev.Counts, snap.Counts, hadPrev)
	}
	if s.history != nil {
		if err := s.history.RecordStatusSample(ctx, snap.Counts, snap.FetchedAt); err != nil {
			s.logger.Warn("record status sample", "err", err)
		}
	}
	return nil
}
