package service

import (
	"context"
	"sync"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
	"portfolio_tracker/internal/pkg/utils"
)

// DefaultPriceTTL is how long a quote is served without asking the source.
const DefaultPriceTTL = 30 * time.Second

// PriceCacheImpl implements port.PriceCache.
//
// Quotes are kept per id with their fetch time. A lookup is a hit only when
// every requested id is present and fresh. On a miss the whole requested set
// is fetched. When the source fails the last stored quotes are served, then
// the fallback table. GetPrices never fails.
type PriceCacheImpl struct {
	source     port.PriceSource
	store      port.QuoteStore
	ttl        time.Duration
	baselineID string
	fallback   entity.PriceTable
	clock      port.Clock
	logger     port.Logger

	// один запрос к источнику за раз
	fetchMu sync.Mutex

	// ids the source answered without a price, so a lookup does not refetch
	// them on every call until the TTL passes
	unpricedMu sync.Mutex
	unpriced   map[string]time.Time

	events *broadcaster[entity.PricesUpdated]
}

// PriceCacheOptions configures NewPriceCache. Zero values use the defaults.
type PriceCacheOptions struct {
	TTL        time.Duration
	BaselineID string
	Fallback   entity.PriceTable
	Clock      port.Clock
}

// NewPriceCache creates a price cache over the given source and store.
func NewPriceCache(source port.PriceSource, store port.QuoteStore, opts PriceCacheOptions, log port.Logger) *PriceCacheImpl {
	if opts.TTL <= 0 {
		opts.TTL = DefaultPriceTTL
	}
	if opts.BaselineID == "" {
		opts.BaselineID = entity.BaselinePriceID
	}
	if len(opts.Fallback) == 0 {
		opts.Fallback = entity.DefaultFallbackPrices()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &PriceCacheImpl{
		source:     source,
		store:      store,
		ttl:        opts.TTL,
		baselineID: opts.BaselineID,
		fallback:   opts.Fallback.Clone(),
		clock:      opts.Clock,
		logger:     log,
		events:     newBroadcaster[entity.PricesUpdated](),
		unpriced:   make(map[string]time.Time),
	}
}

// GetPrices returns USD prices for ids plus the baseline id.
func (c *PriceCacheImpl) GetPrices(ctx context.Context, ids []string) entity.PriceTable {
	requested := utils.UniqueSorted(append(append([]string{}, ids...), c.baselineID))

	stored := c.load(ctx, requested)
	if c.covers(stored, requested) {
		metrics.PriceCacheResults.WithLabelValues("hit").Inc()
		return toTable(stored, requested)
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// пока ждали блокировку, другой вызов мог уже обновить котировки
	stored = c.load(ctx, requested)
	if c.covers(stored, requested) {
		metrics.PriceCacheResults.WithLabelValues("hit").Inc()
		return toTable(stored, requested)
	}
	metrics.PriceCacheResults.WithLabelValues("miss").Inc()

	fetched, err := c.source.FetchPrices(ctx, requested)
	if err != nil {
		return c.degraded(stored, requested, err)
	}

	now := c.clock()
	quotes := make([]entity.PriceQuote, 0, len(fetched))
	for id, p := range fetched {
		quotes = append(quotes, entity.PriceQuote{AssetID: id, USDPrice: p, FetchedAt: now})
	}
	c.markUnpriced(requested, fetched, now)
	if err := c.store.Set(ctx, quotes); err != nil {
		c.logger.Warn("Failed to store price quotes", "error", err)
	}

	result := fetched.Clone()
	for _, id := range requested {
		if _, ok := result[id]; ok {
			continue
		}
		if q, ok := stored[id]; ok {
			result[id] = q.USDPrice
		}
	}

	c.logger.Debug("Prices refreshed", "requested", len(requested), "received", len(fetched))
	c.publish(entity.PricesUpdated{Prices: fetched.Clone(), FetchedAt: now})
	return result
}

// degraded builds the answer when the source failed: stored quotes of any
// age, then fallback values for ids never seen.
func (c *PriceCacheImpl) degraded(stored map[string]entity.PriceQuote, requested []string, err error) entity.PriceTable {
	if len(stored) == 0 {
		metrics.PriceCacheResults.WithLabelValues("fallback").Inc()
		c.logger.Warn("Price source failed and nothing is cached, serving fallback prices", "error", err)
		return c.fallback.Clone()
	}

	metrics.PriceCacheResults.WithLabelValues("stale").Inc()
	c.logger.Warn("Price source failed, serving stale prices", "error", err, "cached", len(stored))
	result := make(entity.PriceTable, len(requested))
	for _, id := range requested {
		if q, ok := stored[id]; ok {
			result[id] = q.USDPrice
		} else if p, ok := c.fallback[id]; ok {
			result[id] = p
		}
	}
	return result
}

func (c *PriceCacheImpl) load(ctx context.Context, ids []string) map[string]entity.PriceQuote {
	stored, err := c.store.Get(ctx, ids)
	if err != nil {
		c.logger.Warn("Failed to read price quotes", "error", err)
		return map[string]entity.PriceQuote{}
	}
	return stored
}

func (c *PriceCacheImpl) covers(stored map[string]entity.PriceQuote, ids []string) bool {
	now := c.clock()
	c.unpricedMu.Lock()
	defer c.unpricedMu.Unlock()
	for _, id := range ids {
		if q, ok := stored[id]; ok && now.Sub(q.FetchedAt) < c.ttl {
			continue
		}
		if at, ok := c.unpriced[id]; ok && now.Sub(at) < c.ttl {
			continue
		}
		return false
	}
	return true
}

func (c *PriceCacheImpl) markUnpriced(requested []string, fetched entity.PriceTable, now time.Time) {
	c.unpricedMu.Lock()
	defer c.unpricedMu.Unlock()
	for _, id := range requested {
		if _, ok := fetched[id]; ok {
			delete(c.unpriced, id)
		} else {
			c.unpriced[id] = now
		}
	}
}

func toTable(stored map[string]entity.PriceQuote, ids []string) entity.PriceTable {
	out := make(entity.PriceTable, len(ids))
	for _, id := range ids {
		if q, ok := stored[id]; ok {
			out[id] = q.USDPrice
		}
	}
	return out
}

// Subscribe returns a channel of PricesUpdated events and a cancel func.
// The channel keeps only the latest undelivered event.
func (c *PriceCacheImpl) Subscribe() (<-chan entity.PricesUpdated, func()) {
	return c.events.subscribe()
}

func (c *PriceCacheImpl) publish(ev entity.PricesUpdated) {
	c.events.publish(ev)
}

// Close closes every subscriber channel. The cache keeps serving lookups.
func (c *PriceCacheImpl) Close() {
	c.events.close()
}
