// Package quotestore keeps the last good price quote per asset id.
package quotestore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"portfolio_tracker/internal/domain/entity"
)

// MemoryStore is an in-process QuoteStore backed by go-cache.
// Freshness is decided by the price cache from FetchedAt, not by expiry here.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates a store. A positive retention makes it forget quotes
// not refreshed within that period; zero keeps them forever.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
	}
	return &MemoryStore{c: cache.New(retention, retention/2)}
}

// Get returns the stored quotes of the requested ids; unknown ids are absent.
func (s *MemoryStore) Get(_ context.Context, ids []string) (map[string]entity.PriceQuote, error) {
	out := make(map[string]entity.PriceQuote, len(ids))
	for _, id := range ids {
		if v, ok := s.c.Get(id); ok {
			if q, ok := v.(entity.PriceQuote); ok {
				out[id] = q
			}
		}
	}
	return out, nil
}

// Set stores the quotes, replacing older ones.
func (s *MemoryStore) Set(_ context.Context, quotes []entity.PriceQuote) error {
	for _, q := range quotes {
		s.c.Set(q.AssetID, q, cache.DefaultExpiration)
	}
	return nil
}
