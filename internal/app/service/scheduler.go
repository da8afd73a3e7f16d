package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// Scheduler defaults.
const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultPriceInterval = 60 * time.Second
	DefaultFullInterval  = 300 * time.Second
)

// SchedulerOptions configures NewScheduler. Zero values use the defaults.
type SchedulerOptions struct {
	Debounce      time.Duration
	PriceInterval time.Duration
	FullInterval  time.Duration
}

// Scheduler decides when the portfolio pipeline runs.
//
// Wallet changes are debounced into one full cycle. The price timer re-prices
// held data and the full timer re-fetches everything. Both timers are skipped
// while a cycle is in flight. A running cycle is never interrupted by a new
// trigger.
type Scheduler struct {
	pipeline port.PortfolioService
	opts     SchedulerOptions
	logger   port.Logger
	changes  chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler for the pipeline.
func NewScheduler(pipeline port.PortfolioService, opts SchedulerOptions, l port.Logger) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PriceInterval <= 0 {
		opts.PriceInterval = DefaultPriceInterval
	}
	if opts.FullInterval <= 0 {
		opts.FullInterval = DefaultFullInterval
	}
	return &Scheduler{
		pipeline: pipeline,
		opts:     opts,
		logger:   l,
		changes:  make(chan struct{}, 1),
	}
}

// WalletsChanged (re)starts the debounce delay. It never blocks.
func (s *Scheduler) WalletsChanged() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Run drives the pipeline until ctx is done. The first full cycle runs one
// debounce delay after start. Run waits for the running cycle before returning.
func (s *Scheduler) Run(ctx context.Context) {
	debounce := time.NewTimer(s.opts.Debounce)
	priceTicker := time.NewTicker(s.opts.PriceInterval)
	fullTicker := time.NewTicker(s.opts.FullInterval)
	defer func() {
		debounce.Stop()
		priceTicker.Stop()
		fullTicker.Stop()
		s.wg.Wait()
	}()

	s.logger.Info("Scheduler started",
		"debounce", s.opts.Debounce.String(),
		"price_interval", s.opts.PriceInterval.String(),
		"full_interval", s.opts.FullInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return

		case <-s.changes:
			resetTimer(debounce, s.opts.Debounce)

		case <-debounce.C:
			if s.pipeline.InFlight() {
				// изменения кошельков не теряем: ждём окончания текущего цикла
				debounce.Reset(s.opts.Debounce)
				continue
			}
			s.start(ctx, "wallets_changed", func(ctx context.Context) error {
				err := s.pipeline.Refresh(ctx)
				if errors.Is(err, entity.ErrCycleInFlight) {
					s.WalletsChanged()
				}
				return err
			})

		case <-priceTicker.C:
			if s.pipeline.InFlight() || s.pipeline.Snapshot() == nil {
				s.logger.Debug("Skipping price refresh")
				continue
			}
			s.start(ctx, "price_timer", s.pipeline.RefreshPrices)

		case <-fullTicker.C:
			if s.pipeline.InFlight() {
				s.logger.Debug("Skipping full refresh, cycle in flight")
				continue
			}
			s.start(ctx, "full_timer", s.pipeline.Refresh)
		}
	}
}

func (s *Scheduler) start(ctx context.Context, trigger string, cycle func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := cycle(ctx); err != nil && !errors.Is(err, entity.ErrCycleInFlight) {
			s.logger.Warn("Refresh cycle failed", "trigger", trigger, "error", err)
		}
	}()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
