package service

import (
	"context"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// RoutedPriceSource sends dex:<chain>:<address> ids to the DEX source and
// every other id to the primary source. A primary failure fails the fetch;
// a DEX failure only drops the DEX prices.
type RoutedPriceSource struct {
	primary port.PriceSource
	dex     port.PriceSource
	retry   *RetryPolicy
	logger  port.Logger
}

// NewRoutedPriceSource creates the router. dex may be nil.
func NewRoutedPriceSource(primary, dex port.PriceSource, retry *RetryPolicy, log port.Logger) *RoutedPriceSource {
	return &RoutedPriceSource{primary: primary, dex: dex, retry: retry, logger: log}
}

// FetchPrices implements port.PriceSource.
func (s *RoutedPriceSource) FetchPrices(ctx context.Context, ids []string) (entity.PriceTable, error) {
	var plain, dexIDs []string
	for _, id := range ids {
		if strings.HasPrefix(id, entity.DexPriceIDPrefix) {
			dexIDs = append(dexIDs, id)
		} else {
			plain = append(plain, id)
		}
	}

	prices := entity.PriceTable{}
	if len(plain) > 0 {
		got, err := Retry(ctx, s.retry, "prices", func(ctx context.Context) (entity.PriceTable, error) {
			return s.primary.FetchPrices(ctx, plain)
		})
		if err != nil {
			return nil, err
		}
		for id, p := range got {
			prices[id] = p
		}
	}

	if len(dexIDs) > 0 && s.dex != nil {
		got, err := Retry(ctx, s.retry, "dex_prices", func(ctx context.Context) (entity.PriceTable, error) {
			return s.dex.FetchPrices(ctx, dexIDs)
		})
		if err != nil {
			s.logger.Warn("DEX price fetch failed, contract tokens stay unpriced", "count", len(dexIDs), "error", err)
		}
		for id, p := range got {
			prices[id] = p
		}
	}
	return prices, nil
}
