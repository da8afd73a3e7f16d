package port

import (
	"context"

	"portfolio_tracker/internal/domain/entity"
)

// BalanceProvider is implemented by every upstream balance/token source.
// Implementations translate their wire format into entity.TokenBalance and
// never retry internally.
type BalanceProvider interface {
	Name() string
	// FetchNativeBalance returns the native balance as a raw integer string (wei).
	FetchNativeBalance(ctx context.Context, address, chain string) (string, error)
	FetchTokenBalances(ctx context.Context, address, chain string) ([]entity.TokenBalance, error)
}

// TokenProvider defines the interface for fetching token definitions.
type TokenProvider interface {
	// GetTokensByNetwork returns a map of network identifier to the tokens configured for it.
	GetTokensByNetwork(networks []entity.NetworkDefinition) (map[string][]entity.TokenInfo, error)
}

// TransactionSource returns explorer transaction lists for an address.
type TransactionSource interface {
	FetchTransactions(ctx context.Context, address string) (entity.TransactionHistory, error)
}

// CombinedBalanceProvider is implemented by providers whose API returns the
// native and token balances in one response. The fetcher prefers it.
type CombinedBalanceProvider interface {
	BalanceProvider
	FetchBalances(ctx context.Context, address, chain string) (string, []entity.TokenBalance, error)
}

// UpstreamProxy returns raw upstream payloads for the pass-through endpoints.
type UpstreamProxy interface {
	Balance(ctx context.Context, address, chain string) ([]byte, error)
	Tokens(ctx context.Context, address, chain string) ([]byte, error)
	WalletTokens(ctx context.Context, address, chain string) ([]byte, error)
	WalletHistory(ctx context.Context, address, chain string) ([]byte, error)
}
