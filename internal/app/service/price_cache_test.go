package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/infrastructure/quotestore"
	"portfolio_tracker/internal/pkg/logger"
)

type fakePriceSource struct {
	mu     sync.Mutex
	prices entity.PriceTable
	err    error
	calls  int
	last   []string
}

func (f *fakePriceSource) FetchPrices(_ context.Context, ids []string) (entity.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = append([]string{}, ids...)
	if f.err != nil {
		return nil, f.err
	}
	out := entity.PriceTable{}
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePriceSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(src *fakePriceSource) (*PriceCacheImpl, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewPriceCache(src, quotestore.NewMemoryStore(0), PriceCacheOptions{Clock: clock.Now}, logger.NewNop())
	return c, clock
}

func TestPriceCacheHitWithinTTL(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000, "chainlink": 15}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	first := c.GetPrices(ctx, []string{"chainlink"})
	if first["ethereum"] != 3000 || first["chainlink"] != 15 {
		t.Fatalf("first lookup = %v", first)
	}

	clock.Advance(10 * time.Second)
	second := c.GetPrices(ctx, []string{"chainlink"})
	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", src.callCount())
	}
	if second["chainlink"] != 15 {
		t.Errorf("cached chainlink = %v, want 15", second["chainlink"])
	}
}

func TestPriceCacheRefetchesAfterTTL(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	c.GetPrices(ctx, nil)
	clock.Advance(30 * time.Second)
	src.prices["ethereum"] = 3100
	got := c.GetPrices(ctx, nil)

	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2", src.callCount())
	}
	if got["ethereum"] != 3100 {
		t.Errorf("ethereum = %v, want 3100", got["ethereum"])
	}
}

func TestPriceCacheAlwaysRequestsBaseline(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000, "uniswap": 8}}
	c, _ := newTestCache(src)

	c.GetPrices(context.Background(), []string{"uniswap", "uniswap", " "})
	if len(src.last) != 2 || src.last[0] != "ethereum" || src.last[1] != "uniswap" {
		t.Errorf("requested ids = %v, want [ethereum uniswap]", src.last)
	}
}

func TestPriceCacheNewIDForcesFetch(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000, "bitcoin": 65000}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	c.GetPrices(ctx, nil)
	clock.Advance(5 * time.Second)
	got := c.GetPrices(ctx, []string{"bitcoin"})

	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2", src.callCount())
	}
	if got["bitcoin"] != 65000 {
		t.Errorf("bitcoin = %v, want 65000", got["bitcoin"])
	}
}

func TestPriceCacheUnpricedIDIsNotRefetched(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	c.GetPrices(ctx, []string{"unknown-coin"})
	clock.Advance(5 * time.Second)
	got := c.GetPrices(ctx, []string{"unknown-coin"})

	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", src.callCount())
	}
	if _, ok := got["unknown-coin"]; ok {
		t.Errorf("unknown-coin should stay unpriced, got %v", got)
	}

	clock.Advance(30 * time.Second)
	c.GetPrices(ctx, []string{"unknown-coin"})
	if src.callCount() != 2 {
		t.Errorf("source calls after TTL = %d, want 2", src.callCount())
	}
}

func TestPriceCacheStaleIfError(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000, "chainlink": 15}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	c.GetPrices(ctx, []string{"chainlink"})
	clock.Advance(2 * time.Minute)
	src.err = &entity.ProviderError{Provider: "coingecko", Status: 503, Kind: entity.KindStatus}

	got := c.GetPrices(ctx, []string{"chainlink", "uniswap"})
	if got["ethereum"] != 3000 || got["chainlink"] != 15 {
		t.Errorf("stale prices = %v", got)
	}
	// uniswap was never fetched, so it comes from the fallback table
	if got["uniswap"] != 8.2 {
		t.Errorf("uniswap = %v, want fallback 8.2", got["uniswap"])
	}
}

func TestPriceCacheLongOutageKeepsLastGoodQuote(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3100}}
	c, clock := newTestCache(src)
	ctx := context.Background()

	if got := c.GetPrices(ctx, nil); got["ethereum"] != 3100 {
		t.Fatalf("first lookup = %v", got)
	}
	src.err = &entity.ProviderError{Provider: "coingecko", Status: 503, Kind: entity.KindStatus}

	// several days of failures, with real time passing between lookups
	for i := 0; i < 3; i++ {
		clock.Advance(36 * time.Hour)
		time.Sleep(20 * time.Millisecond)
		got := c.GetPrices(ctx, nil)
		if len(got) != 1 || got["ethereum"] != 3100 {
			t.Fatalf("lookup %d after outage = %v, want last good ethereum:3100", i, got)
		}
	}
}

func TestPriceCacheFallbackWhenNothingStored(t *testing.T) {
	src := &fakePriceSource{err: &entity.ProviderError{Provider: "coingecko", Kind: entity.KindTimeout}}
	c, _ := newTestCache(src)

	got := c.GetPrices(context.Background(), []string{"chainlink"})
	want := entity.DefaultFallbackPrices()
	if len(got) != len(want) {
		t.Fatalf("got %v, want fallback table %v", got, want)
	}
	for id, p := range want {
		if got[id] != p {
			t.Errorf("%s = %v, want %v", id, got[id], p)
		}
	}
}

func TestPriceCachePublishesAndCloses(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000}}
	c, clock := newTestCache(src)

	events, cancel := c.Subscribe()
	defer cancel()

	c.GetPrices(context.Background(), nil)
	select {
	case ev := <-events:
		if ev.Prices["ethereum"] != 3000 || !ev.FetchedAt.Equal(clock.Now()) {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("expected a PricesUpdated event")
	}

	// a cache hit publishes nothing
	c.GetPrices(context.Background(), nil)
	select {
	case ev := <-events:
		t.Errorf("unexpected event on cache hit: %+v", ev)
	default:
	}

	c.Close()
	if _, ok := <-events; ok {
		t.Error("channel should be closed after Close")
	}

	late, _ := c.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing after Close should return a closed channel")
	}
}

func TestPriceCacheSubscriberKeepsLatestEvent(t *testing.T) {
	src := &fakePriceSource{prices: entity.PriceTable{"ethereum": 3000}}
	c, clock := newTestCache(src)
	events, cancel := c.Subscribe()
	defer cancel()

	c.GetPrices(context.Background(), nil)
	clock.Advance(time.Minute)
	src.prices["ethereum"] = 3200
	c.GetPrices(context.Background(), nil)

	ev := <-events
	if ev.Prices["ethereum"] != 3200 {
		t.Errorf("ethereum = %v, want latest 3200", ev.Prices["ethereum"])
	}
}
