package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sale_inviter/internal/domain"
)

type fakeTicker struct {
	d       time.Duration
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() { t.stopped.Store(true) }

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) all() []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTicker(nil), c.tickers...)
}

func (c *fakeClock) tick() {
	for _, t := range c.all() {
		if !t.stopped.Load() {
			t.ch <- time.Now()
		}
	}
}

type fakeSyncer struct {
	calls    atomic.Int32
	interval atomic.Int64
	block    chan struct{}
	err      error
	panics   bool
}

func newFakeSyncer(interval time.Duration) *fakeSyncer {
	f := &fakeSyncer{}
	f.interval.Store(int64(interval))
	return f
}

func (f *fakeSyncer) Sync(ctx context.Context) (*domain.CycleResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CycleResult{Status: domain.CycleCompleted}, nil
}

func (f *fakeSyncer) PollingInterval(context.Context) time.Duration {
	return time.Duration(f.interval.Load())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestScheduler(syncer Syncer) (*Scheduler, *fakeClock) {
	clock := &fakeClock{}
	return NewScheduler(syncer, testLogger(), WithClock(clock), WithCycleTimeout(time.Second)), clock
}

func waitCalls(t *testing.T, f *fakeSyncer, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return f.calls.Load() == n }, time.Second, 5*time.Millisecond)
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
}

func TestStart_RunsImmediatelyThenOnTicks(t *testing.T) {
	syncer := newFakeSyncer(10 * time.Minute)
	s, clock := newTestScheduler(syncer)

	s.Start(context.Background())
	waitCalls(t, syncer, 1)
	waitIdle(t, s)

	tickers := clock.all()
	require.Len(t, tickers, 1)
	assert.Equal(t, 10*time.Minute, tickers[0].d)

	clock.tick()
	waitCalls(t, syncer, 2)

	s.Stop()
	s.Wait()
}

func TestStart_IsIdempotent(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	s, clock := newTestScheduler(syncer)

	s.Start(context.Background())
	s.Start(context.Background())
	waitCalls(t, syncer, 1)

	assert.Len(t, clock.all(), 1)
	assert.True(t, s.Started())

	s.Stop()
	s.Wait()
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestStop_CancelsTimerButNotInFlightCycle(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	syncer.block = make(chan struct{})
	s, clock := newTestScheduler(syncer)

	s.Start(context.Background())
	waitCalls(t, syncer, 1)
	require.True(t, s.Running())

	s.Stop()
	assert.False(t, s.Started())
	require.Eventually(t, func() bool { return clock.all()[0].stopped.Load() }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Running())

	close(syncer.block)
	s.Wait()
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestStop_WithoutStartIsNoop(t *testing.T) {
	s, _ := newTestScheduler(newFakeSyncer(time.Minute))
	s.Stop()
	assert.False(t, s.Started())
}

func TestRunOnce_DropsOverlappingTrigger(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	syncer.block = make(chan struct{})
	s, _ := newTestScheduler(syncer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, ran := s.RunOnce(context.Background())
		assert.True(t, ran)
		assert.Equal(t, domain.CycleCompleted, result.Status)
	}()
	waitCalls(t, syncer, 1)

	result, ran := s.RunOnce(context.Background())
	assert.False(t, ran)
	assert.Nil(t, result)

	close(syncer.block)
	<-done
	assert.Equal(t, int32(1), syncer.calls.Load())

	_, ran = s.RunOnce(context.Background())
	assert.True(t, ran)
}

func TestRestart_PicksUpNewInterval(t *testing.T) {
	syncer := newFakeSyncer(10 * time.Minute)
	s, clock := newTestScheduler(syncer)

	s.Start(context.Background())
	waitCalls(t, syncer, 1)
	waitIdle(t, s)

	syncer.interval.Store(int64(2 * time.Minute))
	s.Restart()
	waitCalls(t, syncer, 2)

	tickers := clock.all()
	require.Len(t, tickers, 2)
	assert.Equal(t, 2*time.Minute, tickers[1].d)
	assert.Equal(t, 2*time.Minute, s.Interval())
	require.Eventually(t, func() bool { return tickers[0].stopped.Load() }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestRunOnce_ReleasesGuardAfterPanic(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	syncer.panics = true
	s, _ := newTestScheduler(syncer)

	result, ran := s.RunOnce(context.Background())
	assert.True(t, ran)
	assert.Nil(t, result)
	assert.False(t, s.Running())

	syncer.panics = false
	_, ran = s.RunOnce(context.Background())
	assert.True(t, ran)
}

func TestRunOnce_ErrorKeepsSchedulerAlive(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	syncer.err = errors.New("gumroad down")
	s, clock := newTestScheduler(syncer)

	s.Start(context.Background())
	waitCalls(t, syncer, 1)
	waitIdle(t, s)

	clock.tick()
	waitCalls(t, syncer, 2)
	assert.True(t, s.Started())

	s.Stop()
	s.Wait()
}

func TestLoop_ExitsOnContextCancel(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	s, clock := newTestScheduler(syncer)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitCalls(t, syncer, 1)

	cancel()
	s.Wait()
	assert.True(t, clock.all()[0].stopped.Load())
	assert.False(t, s.Started())

	s.Start(context.Background())
	waitCalls(t, syncer, 2)
	assert.True(t, s.Started())
	assert.Len(t, clock.all(), 2)

	s.Stop()
	s.Wait()
}

func waitReturns(t *testing.T, s *Scheduler) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait still blocked; Started()=%v", s.Started())
	}
}

func TestRestart_DuringShutdownDoesNotBlockWait(t *testing.T) {
	tests := []struct {
		name          string
		cancelFirst   bool
		wantRestarted bool
	}{
		{name: "restart before cancel", cancelFirst: false, wantRestarted: true},
		{name: "restart after cancel", cancelFirst: true, wantRestarted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := newFakeSyncer(time.Minute)
			s, clock := newTestScheduler(syncer)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s.Start(ctx)
			waitCalls(t, syncer, 1)
			waitIdle(t, s)

			s.Stop()
			if tt.cancelFirst {
				cancel()
			}
			s.Restart()
			if !tt.cancelFirst {
				cancel()
			}

			waitReturns(t, s)
			assert.False(t, s.Started())
			if tt.wantRestarted {
				assert.Len(t, clock.all(), 2)
			} else {
				assert.Len(t, clock.all(), 1)
			}
		})
	}
}

func TestStart_WithCancelledContextIsNoop(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	s, clock := newTestScheduler(syncer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Start(ctx)
	s.Wait()

	assert.False(t, s.Started())
	assert.Empty(t, clock.all())
	assert.Zero(t, syncer.calls.Load())
}

func TestLoop_StopWinsOverPendingTick(t *testing.T) {
	syncer := newFakeSyncer(time.Minute)
	s, _ := newTestScheduler(syncer)

	const rounds = 50
	for i := 0; i < rounds; i++ {
		ticker := &fakeTicker{ch: make(chan time.Time, 1)}
		ticker.ch <- time.Now()
		stop := make(chan struct{})
		close(stop)

		s.wg.Add(1)
		s.loop(context.Background(), ticker, stop)
		s.Wait()

		assert.True(t, ticker.stopped.Load())
	}

	assert.Equal(t, int32(rounds), syncer.calls.Load())
}
