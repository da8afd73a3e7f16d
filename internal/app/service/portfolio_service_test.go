package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/logger"
)

type staticWallets []entity.Wallet

func (s staticWallets) GetWallets(context.Context) ([]entity.Wallet, error) { return s, nil }

type fakeFetcher struct {
	data  map[string]entity.WalletData
	calls int
	block chan struct{}
}

func (f *fakeFetcher) FetchAll(_ context.Context, wallets []entity.Wallet) []entity.WalletData {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	out := make([]entity.WalletData, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, f.data[w.Address])
	}
	return out
}

func newTestPipeline(prices *fakePriceSource, fetcher *fakeFetcher, wallets ...entity.Wallet) (*PortfolioServiceImpl, *PriceCacheImpl, *fakeClock) {
	cache, clock := newTestCache(prices)
	agg := newTestAggregator(nil, MergeSimple)
	return NewPortfolioService(staticWallets(wallets), fetcher, cache, agg, logger.NewNop()), cache, clock
}

func TestPipelineRefreshEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]entity.WalletData{walletA: nativeWallet(walletA, "eth", "1.5")}}
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 2000}}
	svc, _, _ := newTestPipeline(src, fetcher, entity.Wallet{Address: walletA})

	if svc.Snapshot() != nil {
		t.Fatal("snapshot before first cycle")
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	snap := svc.Snapshot()
	if snap == nil || snap.TotalValue != 3000 || len(snap.Assets) != 1 || snap.Assets[0].Symbol != "ETH" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if svc.InFlight() {
		t.Error("in-flight flag left set")
	}
}

func TestPipelineRefreshPricesSkipsFetcher(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]entity.WalletData{walletA: nativeWallet(walletA, "eth", "2")}}
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 1000}}
	svc, _, clock := newTestPipeline(src, fetcher, entity.Wallet{Address: walletA})
	ctx := context.Background()

	if err := svc.RefreshPrices(ctx); err != nil || svc.Snapshot() != nil {
		t.Fatalf("price refresh before first snapshot should be a no-op, err = %v", err)
	}
	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	src.prices["ethereum"] = 1500
	if err := svc.RefreshPrices(ctx); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls)
	}
	if got := svc.Snapshot().TotalValue; got != 3000 {
		t.Errorf("TotalValue = %v, want 3000", got)
	}
}

func TestPipelineAggregationFailureKeepsSnapshot(t *testing.T) {
	good := nativeWallet(walletA, "eth", "1")
	fetcher := &fakeFetcher{data: map[string]entity.WalletData{walletA: good}}
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 1000}}
	svc, _, _ := newTestPipeline(src, fetcher, entity.Wallet{Address: walletA})
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	before := svc.Snapshot()

	bad := nativeWallet(walletA, "eth", "1")
	bad.Holdings[0].NativeBalance = decimal.NewFromInt(-1)
	fetcher.data[walletA] = bad

	err := svc.Refresh(ctx)
	var aggErr *entity.AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("Refresh() error = %v, want AggregationError", err)
	}
	if svc.Snapshot() != before {
		t.Error("previous snapshot must stay published")
	}
	if svc.LastError() != entity.PortfolioErrorMessage {
		t.Errorf("LastError() = %q", svc.LastError())
	}

	fetcher.data[walletA] = good
	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.LastError() != "" {
		t.Errorf("LastError() should clear after success, got %q", svc.LastError())
	}
}

func TestPipelineRejectsOverlappingCycles(t *testing.T) {
	fetcher := &fakeFetcher{
		data:  map[string]entity.WalletData{walletA: nativeWallet(walletA, "eth", "1")},
		block: make(chan struct{}),
	}
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 1000}}
	svc, _, _ := newTestPipeline(src, fetcher, entity.Wallet{Address: walletA})

	done := make(chan error, 1)
	go func() { done <- svc.Refresh(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !svc.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("cycle never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := svc.Refresh(context.Background()); !errors.Is(err, entity.ErrCycleInFlight) {
		t.Errorf("second Refresh() error = %v, want ErrCycleInFlight", err)
	}
	close(fetcher.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestPipelinePublishesSnapshotsAndReactsToPrices(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string]entity.WalletData{walletA: nativeWallet(walletA, "eth", "1")}}
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 1000}}
	svc, cache, _ := newTestPipeline(src, fetcher, entity.Wallet{Address: walletA})
	ctx := context.Background()

	snaps, cancel := svc.Subscribe()
	defer cancel()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if s := <-snaps; s.TotalValue != 1000 {
		t.Errorf("first snapshot value = %v", s.TotalValue)
	}

	// same prices as the last cycle
	svc.applyPrices(entity.PricesUpdated{Prices: entity.PriceTable{"ethereum": 1000}})
	select {
	case s := <-snaps:
		t.Errorf("unchanged prices must not republish, got %+v", s)
	default:
	}

	svc.applyPrices(entity.PricesUpdated{Prices: entity.PriceTable{"ethereum": 1200}})
	if s := <-snaps; s.TotalValue != 1200 {
		t.Errorf("re-aggregated value = %v, want 1200", s.TotalValue)
	}
	cache.Close()
}
