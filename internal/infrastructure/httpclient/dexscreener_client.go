package httpclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
)

// DEXScreenerName is the provider name of the contract-token price source.
const DEXScreenerName = "dexscreener"

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// DEXScreenerClient prices contract tokens from DEX pair data.
type DEXScreenerClient struct {
	baseClient
	maxTokensPerRequest int
	// chain identifier ("eth") -> DEX Screener chain id ("ethereum")
	chainIDs map[string]string
}

// NewDEXScreenerClient creates a DEX Screener client. chainIDs maps chain
// identifiers to DEX Screener chain ids.
func NewDEXScreenerClient(opts Options, maxTokensPerRequest int, chainIDs map[string]string, logger *zap.Logger) *DEXScreenerClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.dexscreener.com"
	}
	if maxTokensPerRequest <= 0 {
		maxTokensPerRequest = 30
	}
	return &DEXScreenerClient{
		baseClient:          newBaseClient(DEXScreenerName, opts, logger),
		maxTokensPerRequest: maxTokensPerRequest,
		chainIDs:            chainIDs,
	}
}

// GetTokenPairsByAddresses returns the pairs of up to maxTokensPerRequest tokens.
func (c *DEXScreenerClient) GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]pairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.maxTokensPerRequest {
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}

	requestURL := c.buildURL(fmt.Sprintf("/tokens/v1/%s/%s", dexscreenerChainID, strings.Join(tokenAddresses, ",")))
	rawBody, err := c.get(ctx, requestURL, nil)
	if err != nil {
		return nil, err
	}

	var wrapped dexTokenPairs
	if err := json.Unmarshal(rawBody, &wrapped); err == nil && wrapped.Pairs != nil {
		return wrapped.Pairs, nil
	}
	var directPairs []pairData
	if err := json.Unmarshal(rawBody, &directPairs); err != nil {
		return nil, &entity.ProviderError{Provider: c.name, Kind: entity.KindDecode, Message: "failed to decode pairs", Err: err}
	}
	return directPairs, nil
}

// FetchPrices prices every dex:<chain>:<address> id; other ids are ignored.
// Tokens without a usable pair are absent from the result.
func (c *DEXScreenerClient) FetchPrices(ctx context.Context, ids []string) (entity.PriceTable, error) {
	byChain := make(map[string][]string)
	for _, id := range ids {
		chain, addr, ok := entity.ParseDexPriceID(id)
		if !ok {
			continue
		}
		byChain[chain] = append(byChain[chain], addr)
	}

	prices := make(entity.PriceTable)
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for chain, addrs := range byChain {
		chain := chain
		dexChainID, ok := c.chainIDs[chain]
		if !ok {
			c.logger.Warn("No DEX Screener chain id for chain", zap.String("chain", chain))
			continue
		}
		for _, batch := range utils.BatchStrings(utils.UniqueSorted(addrs), c.maxTokensPerRequest) {
			batch := batch
			eg.Go(func() error {
				pairs, err := c.GetTokenPairsByAddresses(egCtx, dexChainID, batch)
				if err != nil {
					return err
				}
				byBase := make(map[string][]pairData)
				for _, p := range pairs {
					base := strings.ToLower(p.BaseToken.Address)
					byBase[base] = append(byBase[base], p)
				}
				mu.Lock()
				defer mu.Unlock()
				for _, addr := range batch {
					price, ok := selectBestPrice(byBase[addr], addr)
					if !ok {
						continue
					}
					prices[entity.DexPriceID(chain, addr)] = price
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

// selectBestPrice picks the USD price of the deepest stablecoin-quoted pair,
// or of the deepest pair overall when no stablecoin pair exists.
func selectBestPrice(pairs []pairData, baseTokenAddress string) (float64, bool) {
	var bestOverall, bestStable *pairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		if _, ok := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]; ok {
			if bestStable == nil || pair.liquidityUSD() > bestStable.liquidityUSD() {
				bestStable = pair
			}
		}
		if bestOverall == nil || pair.liquidityUSD() > bestOverall.liquidityUSD() {
			bestOverall = pair
		}
	}
	best := bestStable
	if best == nil {
		best = bestOverall
	}
	if best == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}
