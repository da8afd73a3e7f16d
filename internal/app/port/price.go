package port

import (
	"context"
	"time"

	"portfolio_tracker/internal/domain/entity"
)

// PriceSource fetches fresh USD prices for the given asset ids.
type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string) (entity.PriceTable, error)
}

// PriceCache serves prices with TTL caching and stale-if-error semantics.
// GetPrices never fails because of an upstream outage.
type PriceCache interface {
	GetPrices(ctx context.Context, ids []string) entity.PriceTable
	Subscribe() (<-chan entity.PricesUpdated, func())
}

// QuoteStore keeps the last good quote per asset id.
type QuoteStore interface {
	Get(ctx context.Context, ids []string) (map[string]entity.PriceQuote, error)
	Set(ctx context.Context, quotes []entity.PriceQuote) error
}

// PriceResolver maps a holding to a price-source id.
type PriceResolver interface {
	Resolve(ref entity.AssetRef) (string, bool)
}

// CostBasisProvider estimates a wallet's average acquisition cost for a symbol.
type CostBasisProvider interface {
	AvgCost(walletAddress, symbol string) float64
}

// Clock returns the current time. Injected for deterministic tests.
type Clock func() time.Time
