package httpclient

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"portfolio_tracker/internal/domain/entity"
)

// MoralisName is the provider name of the primary balance source.
const MoralisName = "moralis"

// MoralisClient talks to the Moralis Web3 Data API (v2).
type MoralisClient struct {
	baseClient
}

// NewMoralisClient creates a Moralis client.
func NewMoralisClient(opts Options, logger *zap.Logger) *MoralisClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://deep-index.moralis.io/api/v2"
	}
	return &MoralisClient{baseClient: newBaseClient(MoralisName, opts, logger)}
}

type moralisBalance struct {
	Balance string `json:"balance"`
}

type moralisToken struct {
	TokenAddress string       `json:"token_address"`
	Name         string       `json:"name"`
	Symbol       string       `json:"symbol"`
	Decimals     flexDecimals `json:"decimals"`
	Balance      string       `json:"balance"`
	PossibleSpam bool         `json:"possible_spam"`
}

// flexDecimals accepts decimals both as a JSON number and as a string.
type flexDecimals uint8

func (d *flexDecimals) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return err
	}
	*d = flexDecimals(n)
	return nil
}

func (c *MoralisClient) headers() map[string]string {
	return map[string]string{"X-API-Key": c.apiKey}
}

func chainOrDefault(chain string) string {
	if chain == "" {
		return entity.DefaultChain
	}
	return chain
}

// FetchNativeBalance returns the native balance in wei.
func (c *MoralisClient) FetchNativeBalance(ctx context.Context, address, chain string) (string, error) {
	if err := c.requireKey(); err != nil {
		return "", err
	}
	var out moralisBalance
	u := c.buildURL("/"+address+"/balance", "chain", chainOrDefault(chain))
	if err := c.getJSON(ctx, u, c.headers(), &out); err != nil {
		return "", err
	}
	if out.Balance == "" {
		return "0", nil
	}
	return out.Balance, nil
}

// FetchTokenBalances returns the ERC-20 balances of the address. Tokens
// flagged as spam are dropped.
func (c *MoralisClient) FetchTokenBalances(ctx context.Context, address, chain string) ([]entity.TokenBalance, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	var items []moralisToken
	u := c.buildURL("/"+address+"/erc20", "chain", chainOrDefault(chain))
	if err := c.getJSON(ctx, u, c.headers(), &items); err != nil {
		return nil, err
	}
	tokens := make([]entity.TokenBalance, 0, len(items))
	for _, it := range items {
		if it.PossibleSpam {
			continue
		}
		tokens = append(tokens, entity.TokenBalance{
			ContractAddress: it.TokenAddress,
			Name:            it.Name,
			Symbol:          it.Symbol,
			Decimals:        uint8(it.Decimals),
			RawBalance:      it.Balance,
		})
	}
	return tokens, nil
}

// Balance returns the raw /{address}/balance payload.
func (c *MoralisClient) Balance(ctx context.Context, address, chain string) ([]byte, error) {
	return c.raw(ctx, "/"+address+"/balance", chain)
}

// Tokens returns the raw /{address}/erc20 payload.
func (c *MoralisClient) Tokens(ctx context.Context, address, chain string) ([]byte, error) {
	return c.raw(ctx, "/"+address+"/erc20", chain)
}

// WalletTokens returns the raw /wallets/{address}/tokens payload.
func (c *MoralisClient) WalletTokens(ctx context.Context, address, chain string) ([]byte, error) {
	return c.raw(ctx, "/wallets/"+address+"/tokens", chain)
}

// WalletHistory returns the raw /wallets/{address}/history payload.
func (c *MoralisClient) WalletHistory(ctx context.Context, address, chain string) ([]byte, error) {
	return c.raw(ctx, "/wallets/"+address+"/history", chain)
}

func (c *MoralisClient) raw(ctx context.Context, path, chain string) ([]byte, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	return c.get(ctx, c.buildURL(path, "chain", chainOrDefault(chain)), c.headers())
}
