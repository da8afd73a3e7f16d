package port

import (
	"context"

	"portfolio_tracker/internal/domain/entity"
)

// Fixed storage keys of the persisted lists.
const (
	WalletsKey = "wallets"
	AlertsKey  = "priceAlerts"
)

// ListStore persists a serialized list under a fixed key. Every mutation
// rewrites the whole list. Load reports false when nothing was stored yet.
type ListStore interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, list any) error
}

// WalletProvider exposes the currently tracked wallets.
type WalletProvider interface {
	GetWallets(ctx context.Context) ([]entity.Wallet, error)
}
