package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/logger"
)

type countingPipeline struct {
	full     atomic.Int32
	prices   atomic.Int32
	inFlight atomic.Bool
	mu       sync.Mutex
	snapshot *entity.PortfolioSnapshot
}

func (p *countingPipeline) Refresh(context.Context) error {
	p.full.Add(1)
	p.mu.Lock()
	p.snapshot = &entity.PortfolioSnapshot{}
	p.mu.Unlock()
	return nil
}

func (p *countingPipeline) RefreshPrices(context.Context) error {
	p.prices.Add(1)
	return nil
}

func (p *countingPipeline) Snapshot() *entity.PortfolioSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *countingPipeline) LastError() string { return "" }
func (p *countingPipeline) InFlight() bool    { return p.inFlight.Load() }

func (p *countingPipeline) Subscribe() (<-chan *entity.PortfolioSnapshot, func()) {
	ch := make(chan *entity.PortfolioSnapshot)
	return ch, func() {}
}

func runScheduler(t *testing.T, s *Scheduler) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestSchedulerDebounceCoalescesBursts(t *testing.T) {
	p := &countingPipeline{}
	s := NewScheduler(p, SchedulerOptions{Debounce: 50 * time.Millisecond, PriceInterval: time.Hour, FullInterval: time.Hour}, logger.NewNop())
	stop := runScheduler(t, s)
	defer stop()

	for i := 0; i < 5; i++ {
		s.WalletsChanged()
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	if got := p.full.Load(); got != 1 {
		t.Errorf("full cycles = %d, want 1", got)
	}
}

func TestSchedulerDebounceWaitsForInFlightCycle(t *testing.T) {
	p := &countingPipeline{}
	p.inFlight.Store(true)
	s := NewScheduler(p, SchedulerOptions{Debounce: 20 * time.Millisecond, PriceInterval: time.Hour, FullInterval: time.Hour}, logger.NewNop())
	stop := runScheduler(t, s)
	defer stop()

	s.WalletsChanged()
	// the debounce fires several times while the other cycle runs
	time.Sleep(120 * time.Millisecond)
	if got := p.full.Load(); got != 0 {
		t.Fatalf("full cycles while in flight = %d, want 0", got)
	}

	p.inFlight.Store(false)
	time.Sleep(150 * time.Millisecond)
	if got := p.full.Load(); got != 1 {
		t.Errorf("full cycles after the other cycle ended = %d, want 1", got)
	}
}

func TestSchedulerTimersSkipWhileInFlight(t *testing.T) {
	p := &countingPipeline{snapshot: &entity.PortfolioSnapshot{}}
	p.inFlight.Store(true)
	s := NewScheduler(p, SchedulerOptions{Debounce: time.Hour, PriceInterval: 10 * time.Millisecond, FullInterval: 15 * time.Millisecond}, logger.NewNop())
	stop := runScheduler(t, s)

	time.Sleep(100 * time.Millisecond)
	stop()

	if p.full.Load() != 0 || p.prices.Load() != 0 {
		t.Errorf("cycles ran while in flight: full = %d, prices = %d", p.full.Load(), p.prices.Load())
	}
}

func TestSchedulerPriceTimerNeedsSnapshot(t *testing.T) {
	p := &countingPipeline{}
	s := NewScheduler(p, SchedulerOptions{Debounce: time.Hour, PriceInterval: 10 * time.Millisecond, FullInterval: time.Hour}, logger.NewNop())
	stop := runScheduler(t, s)
	time.Sleep(60 * time.Millisecond)
	stop()

	if p.prices.Load() != 0 {
		t.Errorf("price refresh ran without a snapshot: %d", p.prices.Load())
	}
}

func TestSchedulerTimersFire(t *testing.T) {
	p := &countingPipeline{snapshot: &entity.PortfolioSnapshot{}}
	s := NewScheduler(p, SchedulerOptions{Debounce: time.Hour, PriceInterval: 10 * time.Millisecond, FullInterval: 20 * time.Millisecond}, logger.NewNop())
	stop := runScheduler(t, s)
	time.Sleep(150 * time.Millisecond)
	stop()

	if p.prices.Load() == 0 || p.full.Load() == 0 {
		t.Errorf("timers did not fire: full = %d, prices = %d", p.full.Load(), p.prices.Load())
	}
}
