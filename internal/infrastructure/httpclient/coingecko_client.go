package httpclient

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
)

// CoinGeckoName is the provider name of the price source.
const CoinGeckoName = "coingecko"

// CoinGeckoClient fetches USD prices from the CoinGecko simple/price endpoint.
type CoinGeckoClient struct {
	baseClient
}

// NewCoinGeckoClient creates a CoinGecko client. The API key is optional.
func NewCoinGeckoClient(opts Options, logger *zap.Logger) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.coingecko.com/api/v3"
	}
	return &CoinGeckoClient{baseClient: newBaseClient(CoinGeckoName, opts, logger)}
}

// FetchPrices returns USD prices keyed by id. Ids unknown to CoinGecko are
// absent from the result.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, ids []string) (entity.PriceTable, error) {
	if len(ids) == 0 {
		return entity.PriceTable{}, nil
	}
	u := c.buildURL("/simple/price", "ids", strings.Join(ids, ","), "vs_currencies", "usd")
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}
	var out map[string]map[string]float64
	if err := c.getJSON(ctx, u, headers, &out); err != nil {
		return nil, err
	}
	prices := make(entity.PriceTable, len(out))
	for id, quotes := range out {
		if p, ok := quotes["usd"]; ok {
			prices[id] = p
		}
	}
	c.logger.Debug("Fetched prices", zap.Int("requested", len(ids)), zap.Int("received", len(prices)))
	return prices, nil
}
