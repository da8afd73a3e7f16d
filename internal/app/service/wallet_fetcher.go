package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
	"portfolio_tracker/internal/pkg/utils"
)

// PlaceholderSource marks holdings that were not fetched from any provider.
const PlaceholderSource = "placeholder"

// PlaceholderNativeBalance is the demo native balance used when every
// provider failed for a wallet.
var PlaceholderNativeBalance = decimal.RequireFromString("0.0156")

// WalletFetcherImpl implements port.WalletFetcher.
type WalletFetcherImpl struct {
	providers             []port.BalanceProvider
	networkProvider       port.NetworkDefinitionProvider
	retry                 *RetryPolicy
	logger                port.Logger
	maxConcurrentRoutines int
}

// NewWalletFetcher creates a fetcher that tries providers in the given order.
func NewWalletFetcher(
	providers []port.BalanceProvider,
	np port.NetworkDefinitionProvider,
	retry *RetryPolicy,
	l port.Logger,
	maxRoutines int,
) *WalletFetcherImpl {
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	return &WalletFetcherImpl{
		providers:             providers,
		networkProvider:       np,
		retry:                 retry,
		logger:                l,
		maxConcurrentRoutines: maxRoutines,
	}
}

// FetchAll fetches every wallet concurrently. The result has the same order
// as wallets and never carries an error: failed wallets get the placeholder.
func (f *WalletFetcherImpl) FetchAll(ctx context.Context, wallets []entity.Wallet) []entity.WalletData {
	results := make([]entity.WalletData, len(wallets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrentRoutines)
	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			results[i] = f.FetchWallet(gctx, w)
			return nil
		})
	}
	_ = g.Wait()

	placeholders := 0
	for _, r := range results {
		if r.Placeholder {
			placeholders++
		}
	}
	f.logger.Info("Fetched wallet data", "wallets", len(wallets), "placeholders", placeholders)
	return results
}

// FetchWallet reads every chain of the wallet. A chain where all providers
// fail is skipped; when no chain could be read the placeholder is returned.
func (f *WalletFetcherImpl) FetchWallet(ctx context.Context, w entity.Wallet) entity.WalletData {
	chains := w.ChainsOrDefault()
	data := entity.WalletData{Address: w.Address, Chains: chains}

	for _, chain := range chains {
		h, err := f.fetchChain(ctx, w.Address, chain)
		if err != nil {
			f.logger.Warn("All providers failed for wallet chain", "address", w.Address, "chain", chain, "error", err)
			continue
		}
		data.Holdings = append(data.Holdings, h)
	}

	if len(data.Holdings) == 0 {
		metrics.WalletFetches.WithLabelValues(PlaceholderSource).Inc()
		f.logger.Warn("Using placeholder data for wallet", "address", w.Address)
		return f.placeholder(w.Address, chains)
	}
	return data
}

func (f *WalletFetcherImpl) fetchChain(ctx context.Context, address, chain string) (entity.ChainHoldings, error) {
	var lastErr error
	for _, p := range f.providers {
		rawNative, tokens, err := f.fetchFromProvider(ctx, p, address, chain)
		if err != nil {
			f.logger.Debug("Provider failed", "provider", p.Name(), "address", address, "chain", chain, "error", err)
			lastErr = err
			continue
		}
		h, err := f.toHoldings(chain, p.Name(), rawNative, tokens)
		if err != nil {
			lastErr = err
			continue
		}
		metrics.WalletFetches.WithLabelValues(p.Name()).Inc()
		return h, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no balance providers configured")
	}
	return entity.ChainHoldings{}, lastErr
}

// fetchFromProvider returns native and token balances from one provider.
// Each upstream call goes through the retry policy on its own.
func (f *WalletFetcherImpl) fetchFromProvider(ctx context.Context, p port.BalanceProvider, address, chain string) (string, []entity.TokenBalance, error) {
	if cp, ok := p.(port.CombinedBalanceProvider); ok {
		var native string
		tokens, err := Retry(ctx, f.retry, p.Name()+"_balances", func(ctx context.Context) ([]entity.TokenBalance, error) {
			n, t, err := cp.FetchBalances(ctx, address, chain)
			native = n
			return t, err
		})
		return native, tokens, err
	}

	native, err := Retry(ctx, f.retry, p.Name()+"_native", func(ctx context.Context) (string, error) {
		return p.FetchNativeBalance(ctx, address, chain)
	})
	if err != nil {
		return "", nil, err
	}
	tokens, err := Retry(ctx, f.retry, p.Name()+"_tokens", func(ctx context.Context) ([]entity.TokenBalance, error) {
		return p.FetchTokenBalances(ctx, address, chain)
	})
	if err != nil {
		return "", nil, err
	}
	return native, tokens, nil
}

func (f *WalletFetcherImpl) toHoldings(chain, source, rawNative string, tokens []entity.TokenBalance) (entity.ChainHoldings, error) {
	netDef := f.network(chain)
	native, err := utils.ToDecimalUnits(rawNative, uint8(netDef.Decimals))
	if err != nil {
		return entity.ChainHoldings{}, &entity.ProviderError{Provider: source, Kind: entity.KindDecode, Message: "native balance", Err: err}
	}

	h := entity.ChainHoldings{
		Chain:         chain,
		NativeSymbol:  netDef.NativeSymbol,
		NativeName:    netDef.NativeName,
		NativeBalance: native,
		Tokens:        make([]entity.TokenBalance, 0, len(tokens)),
		Source:        source,
	}
	for _, t := range tokens {
		if strings.TrimSpace(t.Symbol) == "" {
			f.logger.Debug("Skipping token without symbol", "provider", source, "contract", t.ContractAddress)
			continue
		}
		if _, err := utils.ToDecimalUnits(t.RawBalance, t.Decimals); err != nil {
			f.logger.Warn("Skipping token with malformed balance", "provider", source, "symbol", t.Symbol, "error", err)
			continue
		}
		h.Tokens = append(h.Tokens, t)
	}
	return h, nil
}

func (f *WalletFetcherImpl) placeholder(address string, chains []string) entity.WalletData {
	netDef := f.network(entity.DefaultChain)
	return entity.WalletData{
		Address: address,
		Chains:  chains,
		Holdings: []entity.ChainHoldings{{
			Chain:         entity.DefaultChain,
			NativeSymbol:  netDef.NativeSymbol,
			NativeName:    netDef.NativeName,
			NativeBalance: PlaceholderNativeBalance,
			Tokens:        []entity.TokenBalance{},
			Source:        PlaceholderSource,
		}},
		Placeholder: true,
	}
}

// network returns the chain definition, or an 18-decimals stand-in named
// after the chain when it is unknown.
func (f *WalletFetcherImpl) network(chain string) entity.NetworkDefinition {
	if f.networkProvider != nil {
		if nd, ok := f.networkProvider.GetNetworkDefinitionByName(chain); ok {
			return nd
		}
	}
	if strings.EqualFold(chain, entity.DefaultChain) {
		return entity.NetworkDefinition{Identifier: entity.DefaultChain, NativeSymbol: "ETH", NativeName: "Ethereum", NativePriceID: entity.BaselinePriceID, Decimals: 18}
	}
	return entity.NetworkDefinition{Identifier: chain, NativeSymbol: strings.ToUpper(chain), NativeName: chain, Decimals: 18}
}
