package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sale_inviter/internal/domain"
)

const DefaultCycleTimeout = 5 * time.Minute

// Syncer defines the interface for polling cycles.
type Syncer interface {
	Sync(ctx context.Context) (*domain.CycleResult, error)
	PollingInterval(ctx context.Context) time.Duration
}

// Scheduler runs the syncer once on start and then on every tick. At most
// one cycle runs at a time; a trigger that arrives while a cycle is in
// flight is dropped.
type Scheduler struct {
	syncer       Syncer
	clock        Clock
	cycleTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	stop     chan struct{}
	interval time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cycleTimeout = d
		}
	}
}

func NewScheduler(syncer Syncer, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		syncer:       syncer,
		clock:        RealClock{},
		cycleTimeout: DefaultCycleTimeout,
		logger:       logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a cycle immediately and schedules the next ones at the polling
// interval read from settings. Calling Start on a started scheduler, or with a
// cancelled context, does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	if ctx.Err() != nil {
		s.logger.Info("scheduler not started, context done")
		return
	}

	s.baseCtx = ctx
	s.interval = s.syncer.PollingInterval(ctx)
	s.stop = make(chan struct{})

	ticker := s.clock.NewTicker(s.interval)

	s.wg.Add(1)
	go s.loop(ctx, ticker, s.stop)

	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop cancels future ticks. A cycle already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil

	s.logger.Info("scheduler stopped")
}

// Restart stops the timer and starts it again, picking up a changed polling
// interval and running a cycle right away.
func (s *Scheduler) Restart() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	s.Stop()
	s.Start(ctx)
}

// Started reports whether the timer is active.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Interval returns the period of the current timer.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Wait blocks until the loop and every dispatched cycle have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, stop chan struct{}) {
	defer s.wg.Done()
	defer ticker.Stop()

	s.dispatch(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.release(stop)
			return
		case <-ticker.C():
			// select picks randomly when a tick and stop are both ready.
			select {
			case <-stop:
				return
			default:
			}
			s.dispatch(ctx)
		}
	}
}

// release marks the scheduler as stopped when its loop ends on context
// cancellation, unless a Restart already replaced the loop.
func (s *Scheduler) release(stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == stop {
		s.stop = nil
		s.logger.Info("scheduler stopped, context done")
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
}

// RunOnce executes a single cycle under the reentrancy guard. ran is false
// when another cycle was already running; result is nil when the cycle failed.
func (s *Scheduler) RunOnce(ctx context.Context) (result *domain.CycleResult, ran bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous cycle still running, trigger dropped")
		return nil, false
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked", "panic", r)
			result, ran = nil, true
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	result, err := s.syncer.Sync(cycleCtx)
	if err != nil {
		s.logger.Error("cycle failed", "error", err)
		return nil, true
	}

	if result != nil && result.Status == domain.CycleSkipped {
		s.logger.Debug("cycle skipped", "reason", result.SkipReason)
	}

	return result, true
}
