package port

import (
	"context"

	"portfolio_tracker/internal/domain/entity"
)

// PortfolioService runs fetch+aggregate cycles and publishes snapshots.
type PortfolioService interface {
	// Refresh runs a full cycle: wallet fetch, price lookup, aggregation.
	Refresh(ctx context.Context) error
	// RefreshPrices re-prices the wallet data held from the last full cycle.
	RefreshPrices(ctx context.Context) error
	// Snapshot returns the latest published snapshot, or nil before the first cycle.
	Snapshot() *entity.PortfolioSnapshot
	LastError() string
	InFlight() bool
	Subscribe() (<-chan *entity.PortfolioSnapshot, func())
}

// WalletFetcher fetches holdings for tracked wallets.
type WalletFetcher interface {
	FetchAll(ctx context.Context, wallets []entity.Wallet) []entity.WalletData
}
