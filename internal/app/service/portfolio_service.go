package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
)

// PortfolioServiceImpl implements port.PortfolioService.
//
// One cycle runs at a time, guarded by the in-flight flag. The latest
// snapshot is swapped in as a whole; readers never see a partial one.
type PortfolioServiceImpl struct {
	walletProvider port.WalletProvider
	fetcher        port.WalletFetcher
	priceCache     port.PriceCache
	aggregator     *Aggregator
	logger         port.Logger

	inFlight atomic.Bool
	snapshot atomic.Pointer[entity.PortfolioSnapshot]

	mu         sync.Mutex
	held       []entity.WalletData
	heldPrices entity.PriceTable
	lastErr    string

	updates *broadcaster[*entity.PortfolioSnapshot]
}

// NewPortfolioService creates a new instance of PortfolioServiceImpl.
func NewPortfolioService(
	wp port.WalletProvider,
	fetcher port.WalletFetcher,
	cache port.PriceCache,
	aggregator *Aggregator,
	l port.Logger,
) *PortfolioServiceImpl {
	return &PortfolioServiceImpl{
		walletProvider: wp,
		fetcher:        fetcher,
		priceCache:     cache,
		aggregator:     aggregator,
		logger:         l,
		updates:        newBroadcaster[*entity.PortfolioSnapshot](),
	}
}

// Refresh runs a full cycle: wallet fetch, price lookup, aggregation.
func (s *PortfolioServiceImpl) Refresh(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return entity.ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	wallets, err := s.walletProvider.GetWallets(ctx)
	if err != nil {
		s.logger.Error("Failed to get wallets", "error", err)
		metrics.RefreshDuration.WithLabelValues("full", "error").Observe(time.Since(start).Seconds())
		return err
	}
	s.logger.Debug("Starting full refresh", "wallets", len(wallets))

	results := s.fetcher.FetchAll(ctx, wallets)
	prices := s.priceCache.GetPrices(ctx, s.aggregator.PriceIDs(results))

	err = s.aggregate(results, prices)
	metrics.RefreshDuration.WithLabelValues("full", outcome(err)).Observe(time.Since(start).Seconds())
	return err
}

// RefreshPrices re-prices the wallet data of the last full cycle without
// touching the balance providers. It is a no-op before the first snapshot.
func (s *PortfolioServiceImpl) RefreshPrices(ctx context.Context) error {
	if s.snapshot.Load() == nil {
		return nil
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return entity.ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	results := s.heldResults()
	prices := s.priceCache.GetPrices(ctx, s.aggregator.PriceIDs(results))

	err := s.aggregate(results, prices)
	metrics.RefreshDuration.WithLabelValues("prices", outcome(err)).Observe(time.Since(start).Seconds())
	return err
}

// WatchPrices re-aggregates the held wallet data whenever the price cache
// publishes new prices. It returns when ctx is done or the cache is closed.
func (s *PortfolioServiceImpl) WatchPrices(ctx context.Context) {
	events, cancel := s.priceCache.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.applyPrices(ev)
		}
	}
}

func (s *PortfolioServiceImpl) applyPrices(ev entity.PricesUpdated) {
	if s.snapshot.Load() == nil {
		return
	}
	// цикл сам опубликует снимок с этими ценами
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	results := s.held
	merged := s.heldPrices.Clone()
	changed := false
	for id, p := range ev.Prices {
		if old, ok := merged[id]; !ok || old != p {
			changed = true
		}
		merged[id] = p
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Debug("Prices updated, re-aggregating", "ids", len(ev.Prices))
	_ = s.aggregate(results, merged)
}

// aggregate builds and publishes a snapshot. On failure the previous
// snapshot stays and LastError is set.
func (s *PortfolioServiceImpl) aggregate(results []entity.WalletData, prices entity.PriceTable) error {
	snap, err := s.aggregator.Aggregate(results, prices)
	if err != nil {
		s.logger.Error("Error processing portfolio data", "error", err)
		s.mu.Lock()
		s.lastErr = entity.PortfolioErrorMessage
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.held = results
	s.heldPrices = prices.Clone()
	s.lastErr = ""
	s.mu.Unlock()

	s.snapshot.Store(snap)
	metrics.PortfolioValue.Set(snap.TotalValue)
	s.updates.publish(snap)
	s.logger.Info("Portfolio snapshot published",
		"assets", len(snap.Assets), "total_value", snap.TotalValue, "placeholders", snap.PlaceholderWallets)
	return nil
}

func (s *PortfolioServiceImpl) heldResults() []entity.WalletData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Snapshot returns the latest published snapshot, or nil before the first cycle.
func (s *PortfolioServiceImpl) Snapshot() *entity.PortfolioSnapshot {
	return s.snapshot.Load()
}

// LastError returns the user-visible message of the last failed cycle.
func (s *PortfolioServiceImpl) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *PortfolioServiceImpl) InFlight() bool {
	return s.inFlight.Load()
}

// Subscribe returns a channel of published snapshots and a cancel func.
func (s *PortfolioServiceImpl) Subscribe() (<-chan *entity.PortfolioSnapshot, func()) {
	return s.updates.subscribe()
}

// Close closes every snapshot subscriber.
func (s *PortfolioServiceImpl) Close() {
	s.updates.close()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
