package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"portfolio_tracker/internal/domain/entity"
	networkdefinition "portfolio_tracker/internal/infrastructure/network/definition"
	"portfolio_tracker/internal/infrastructure/storage"
	"portfolio_tracker/internal/infrastructure/walletloader"
	"portfolio_tracker/internal/pkg/logger"
)

type failingStore struct{}

func (failingStore) Load(context.Context, string, any) (bool, error) { return false, nil }
func (failingStore) Save(context.Context, string, any) error         { return errors.New("disk full") }

func newTestWalletService(t *testing.T, dir string) *WalletService {
	t.Helper()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	np := networkdefinition.NewNetworkDefinitionProvider(logger.NewNop(), nil)
	return NewWalletService(store, np, logger.NewNop())
}

func TestWalletServiceAddValidates(t *testing.T) {
	s := newTestWalletService(t, t.TempDir())
	ctx := context.Background()

	for _, addr := range []string{"", "0x123", "742d35Cc6634C0532925a3b844Bc454e4438f44e", "0xZZ2d35Cc6634C0532925a3b844Bc454e4438f44e"} {
		if _, err := s.Add(ctx, addr, nil); !errors.Is(err, entity.ErrInvalidAddress) {
			t.Errorf("Add(%q) error = %v, want ErrInvalidAddress", addr, err)
		}
	}
	if len(s.List()) != 0 {
		t.Errorf("invalid addresses were added: %v", s.List())
	}

	if _, err := s.Add(ctx, walletA, []string{"solana"}); !errors.Is(err, entity.ErrUnknownChain) {
		t.Errorf("unknown chain error = %v", err)
	}
}

func TestWalletServiceRejectsDuplicates(t *testing.T) {
	s := newTestWalletService(t, t.TempDir())
	ctx := context.Background()
	notified := 0
	s.OnChange(func() { notified++ })

	w, err := s.Add(ctx, "0x742d35cc6634c0532925a3b844bc454e4438f44e", []string{"ETH", "polygon", "eth"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if w.Address != "0x742d35Cc6634C0532925a3b844Bc454e4438f44e" {
		t.Errorf("address = %s, want checksummed form", w.Address)
	}
	if len(w.Chains) != 2 || w.Chains[0] != "eth" || w.Chains[1] != "polygon" {
		t.Errorf("chains = %v", w.Chains)
	}

	if _, err := s.Add(ctx, "0x742D35CC6634C0532925A3B844BC454E4438F44E", nil); !errors.Is(err, entity.ErrWalletExists) {
		t.Errorf("duplicate error = %v, want ErrWalletExists", err)
	}
	if len(s.List()) != 1 || notified != 1 {
		t.Errorf("wallets = %v, notified = %d", s.List(), notified)
	}
}

func TestWalletServicePersistsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := newTestWalletService(t, dir)
	if _, err := s.Add(ctx, walletA, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, walletB, nil); err != nil {
		t.Fatal(err)
	}

	reloaded := newTestWalletService(t, dir)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.List()) != 2 {
		t.Fatalf("reloaded = %v", reloaded.List())
	}

	if err := reloaded.Remove(ctx, walletA); err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Remove(ctx, walletA); !errors.Is(err, entity.ErrWalletNotFound) {
		t.Errorf("second Remove() error = %v", err)
	}
	got, _ := reloaded.GetWallets(ctx)
	if len(got) != 1 || !entity.SameAddress(got[0].Address, walletB) {
		t.Errorf("wallets = %v", got)
	}
}

func TestWalletServiceSaveFailureLeavesListUntouched(t *testing.T) {
	s := NewWalletService(failingStore{}, nil, logger.NewNop())
	if _, err := s.Add(context.Background(), walletA, nil); err == nil {
		t.Fatal("expected save error")
	}
	if len(s.List()) != 0 {
		t.Errorf("wallet added despite failed save: %v", s.List())
	}
}

func TestWalletServiceImportSeed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "wallets.txt")
	seed := "# seed\n" + walletA + " eth,arbitrum\nnot-an-address\n" + walletB + "\n"
	if err := os.WriteFile(seedPath, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestWalletService(t, filepath.Join(dir, "state"))
	ctx := context.Background()

	n, err := s.ImportSeed(ctx, walletloader.NewWalletFileLoader(seedPath, logger.NewNop()))
	if err != nil || n != 2 {
		t.Fatalf("ImportSeed() = %d, %v", n, err)
	}
	if got := s.List()[0].Chains; len(got) != 2 || got[1] != "arbitrum" {
		t.Errorf("chains = %v", got)
	}

	n, err = s.ImportSeed(ctx, walletloader.NewWalletFileLoader(seedPath, logger.NewNop()))
	if err != nil || n != 0 {
		t.Errorf("second ImportSeed() = %d, %v, want no import", n, err)
	}
}
