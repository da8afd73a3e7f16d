package httpclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
)

// GoldRushName is the provider name of the secondary balance source.
const GoldRushName = "goldrush"

var goldRushChainIDs = map[string]uint64{
	"eth":       1,
	"polygon":   137,
	"bsc":       56,
	"arbitrum":  42161,
	"avalanche": 43114,
}

// GoldRushChainID maps a chain identifier to the numeric id used in GoldRush
// URLs. Unknown chains map to Ethereum mainnet.
func GoldRushChainID(chain string) uint64 {
	if id, ok := goldRushChainIDs[strings.ToLower(chain)]; ok {
		return id
	}
	return 1
}

// GoldRushClient talks to the GoldRush (Covalent) balances API.
type GoldRushClient struct {
	baseClient
}

// NewGoldRushClient creates a GoldRush client.
func NewGoldRushClient(opts Options, logger *zap.Logger) *GoldRushClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.covalenthq.com/v1"
	}
	return &GoldRushClient{baseClient: newBaseClient(GoldRushName, opts, logger)}
}

type goldRushResponse struct {
	Data struct {
		Address string         `json:"address"`
		Items   []goldRushItem `json:"items"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type goldRushItem struct {
	ContractDecimals     *int   `json:"contract_decimals"`
	ContractName         string `json:"contract_name"`
	ContractTickerSymbol string `json:"contract_ticker_symbol"`
	ContractAddress      string `json:"contract_address"`
	Balance              string `json:"balance"`
	NativeToken          bool   `json:"native_token"`
	Type                 string `json:"type"`
}

// FetchBalances returns the native balance and token balances from a single
// balances_v2 call.
func (c *GoldRushClient) FetchBalances(ctx context.Context, address, chain string) (string, []entity.TokenBalance, error) {
	if err := c.requireKey(); err != nil {
		return "", nil, err
	}
	u := c.buildURL(fmt.Sprintf("/%d/address/%s/balances_v2/", GoldRushChainID(chain), address))
	var out goldRushResponse
	if err := c.getJSON(ctx, u, map[string]string{"Authorization": "Bearer " + c.apiKey}, &out); err != nil {
		return "", nil, err
	}
	if out.Error {
		return "", nil, &entity.ProviderError{Provider: c.name, Kind: entity.KindStatus, Message: out.ErrorMessage}
	}

	native := "0"
	tokens := make([]entity.TokenBalance, 0, len(out.Data.Items))
	for _, it := range out.Data.Items {
		if it.NativeToken {
			if it.Balance != "" {
				native = it.Balance
			}
			continue
		}
		if it.Type == "nft" {
			continue
		}
		var decimals uint8
		if it.ContractDecimals != nil && *it.ContractDecimals >= 0 && *it.ContractDecimals <= 255 {
			decimals = uint8(*it.ContractDecimals)
		}
		tokens = append(tokens, entity.TokenBalance{
			ContractAddress: it.ContractAddress,
			Name:            it.ContractName,
			Symbol:          it.ContractTickerSymbol,
			Decimals:        decimals,
			RawBalance:      it.Balance,
		})
	}
	return native, tokens, nil
}

// FetchNativeBalance returns the native balance in wei.
func (c *GoldRushClient) FetchNativeBalance(ctx context.Context, address, chain string) (string, error) {
	native, _, err := c.FetchBalances(ctx, address, chain)
	return native, err
}

// FetchTokenBalances returns the token balances of the address.
func (c *GoldRushClient) FetchTokenBalances(ctx context.Context, address, chain string) ([]entity.TokenBalance, error) {
	_, tokens, err := c.FetchBalances(ctx, address, chain)
	return tokens, err
}
