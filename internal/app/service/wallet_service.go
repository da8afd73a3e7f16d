package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
)

// WalletService is the registry of tracked wallets. It implements
// port.WalletProvider. Every mutation rewrites the persisted list.
type WalletService struct {
	store    port.ListStore
	networks port.NetworkDefinitionProvider
	logger   port.Logger

	mu       sync.Mutex
	wallets  []entity.Wallet
	onChange func()
}

// NewWalletService creates an empty registry. Call Load to read the stored list.
func NewWalletService(store port.ListStore, networks port.NetworkDefinitionProvider, l port.Logger) *WalletService {
	return &WalletService{store: store, networks: networks, logger: l}
}

// OnChange registers fn to be called after every successful mutation.
func (s *WalletService) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Load reads the persisted list, replacing the in-memory one.
func (s *WalletService) Load(ctx context.Context) error {
	var wallets []entity.Wallet
	found, err := s.store.Load(ctx, port.WalletsKey, &wallets)
	if err != nil {
		return fmt.Errorf("failed to load wallets: %w", err)
	}
	s.mu.Lock()
	s.wallets = wallets
	s.mu.Unlock()
	metrics.TrackedWallets.Set(float64(len(wallets)))
	s.logger.Info("Wallets loaded", "count", len(wallets), "stored", found)
	return nil
}

// ImportSeed adds the seed wallets when the registry is empty. It returns the
// number of imported wallets. Invalid or duplicate seeds are skipped.
func (s *WalletService) ImportSeed(ctx context.Context, seed port.WalletProvider) (int, error) {
	if len(s.List()) > 0 {
		return 0, nil
	}
	wallets, err := seed.GetWallets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed wallets: %w", err)
	}
	imported := 0
	for _, w := range wallets {
		if _, err := s.Add(ctx, w.Address, w.Chains); err != nil {
			s.logger.Warn("Skipping seed wallet", "address", w.Address, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}

// Add validates and registers a wallet. The address is stored in its
// checksummed form. A duplicate is rejected with ErrWalletExists and the
// list is left untouched.
func (s *WalletService) Add(ctx context.Context, address string, chains []string) (entity.Wallet, error) {
	address = strings.TrimSpace(address)
	if err := entity.ValidateAddress(address); err != nil {
		return entity.Wallet{}, err
	}
	normChains, err := s.normalizeChains(chains)
	if err != nil {
		return entity.Wallet{}, err
	}
	w := entity.Wallet{Address: common.HexToAddress(address).Hex(), Chains: normChains}

	s.mu.Lock()
	for _, existing := range s.wallets {
		if entity.SameAddress(existing.Address, w.Address) {
			s.mu.Unlock()
			return entity.Wallet{}, entity.ErrWalletExists
		}
	}
	next := append(append(make([]entity.Wallet, 0, len(s.wallets)+1), s.wallets...), w)
	if err := s.store.Save(ctx, port.WalletsKey, next); err != nil {
		s.mu.Unlock()
		return entity.Wallet{}, fmt.Errorf("failed to save wallets: %w", err)
	}
	s.wallets = next
	notify := s.onChange
	s.mu.Unlock()

	metrics.TrackedWallets.Set(float64(len(next)))
	s.logger.Info("Wallet added", "address", w.Address, "chains", w.ChainsOrDefault())
	if notify != nil {
		notify()
	}
	return w, nil
}

// Remove stops tracking the wallet. Address case is ignored.
func (s *WalletService) Remove(ctx context.Context, address string) error {
	s.mu.Lock()
	idx := -1
	for i, w := range s.wallets {
		if entity.SameAddress(w.Address, strings.TrimSpace(address)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return entity.ErrWalletNotFound
	}
	next := make([]entity.Wallet, 0, len(s.wallets)-1)
	next = append(next, s.wallets[:idx]...)
	next = append(next, s.wallets[idx+1:]...)
	if err := s.store.Save(ctx, port.WalletsKey, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save wallets: %w", err)
	}
	s.wallets = next
	notify := s.onChange
	s.mu.Unlock()

	metrics.TrackedWallets.Set(float64(len(next)))
	s.logger.Info("Wallet removed", "address", address)
	if notify != nil {
		notify()
	}
	return nil
}

// List returns a copy of the tracked wallets in insertion order.
func (s *WalletService) List() []entity.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Wallet, len(s.wallets))
	copy(out, s.wallets)
	return out
}

// GetWallets implements port.WalletProvider.
func (s *WalletService) GetWallets(_ context.Context) ([]entity.Wallet, error) {
	return s.List(), nil
}

func (s *WalletService) normalizeChains(chains []string) ([]string, error) {
	var out []string
	for _, c := range chains {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if s.networks != nil {
			if _, ok := s.networks.GetNetworkDefinitionByName(c); !ok {
				return nil, fmt.Errorf("%w: %s", entity.ErrUnknownChain, c)
			}
		}
		dup := false
		for _, o := range out {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out, nil
}
