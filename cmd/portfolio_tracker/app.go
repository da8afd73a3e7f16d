package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/app/service"
	"portfolio_tracker/internal/infrastructure/configloader"
	"portfolio_tracker/internal/infrastructure/httpclient"
	clientprovider "portfolio_tracker/internal/infrastructure/network/client"
	networkdefinition "portfolio_tracker/internal/infrastructure/network/definition"
	"portfolio_tracker/internal/infrastructure/quotestore"
	"portfolio_tracker/internal/infrastructure/storage"
	"portfolio_tracker/internal/infrastructure/tokenloader"
	"portfolio_tracker/internal/infrastructure/walletloader"
	"portfolio_tracker/internal/pkg/logger"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *configloader.Config
	zap      *zap.Logger
	log      port.Logger
	networks *networkdefinition.NetworkDefinitionProvider
	wallets  *service.WalletService
	alerts   *service.AlertService

	// заполняются в buildPipeline
	moralis    *httpclient.MoralisClient
	etherscan  *httpclient.EtherscanClient
	priceCache *service.PriceCacheImpl
	portfolio  *service.PortfolioServiceImpl

	closers []func()
}

// newApp loads the configuration, sets up logging and opens the wallet and
// alert registries.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := configloader.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zl, err := logger.Init(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, zap: zl, log: logger.NewSlogAdapter()}
	a.log.Debug("Configuration loaded", "config", cfg.Redacted())

	overrides := make([]networkdefinition.RPCOverride, 0, len(cfg.Providers.RPC.Networks))
	for _, n := range cfg.Providers.RPC.Networks {
		overrides = append(overrides, networkdefinition.RPCOverride{
			Identifier:         n.Name,
			RPCURL:             n.RPCURL,
			DEXScreenerChainID: n.DEXScreenerChainID,
		})
	}
	a.networks = networkdefinition.NewNetworkDefinitionProvider(a.log, overrides)

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.wallets = service.NewWalletService(store, a.networks, a.log)
	if err := a.wallets.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	seed := walletloader.NewWalletFileLoader(cfg.Storage.WalletsSeedFile, a.log)
	switch n, err := a.wallets.ImportSeed(ctx, seed); {
	case errors.Is(err, fs.ErrNotExist):
		a.log.Info("No wallet seed file", "path", cfg.Storage.WalletsSeedFile)
	case err != nil:
		a.log.Warn("Wallet seed import failed", "error", err)
	case n > 0:
		a.log.Info("Imported seed wallets", "count", n)
	}

	a.alerts = service.NewAlertService(store, time.Now, a.log)
	if err := a.alerts.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (port.ListStore, error) {
	if a.cfg.Storage.Backend == "postgres" {
		pg, err := storage.NewPostgresStore(ctx, a.cfg.Storage.Postgres.DSN, a.cfg.Storage.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Storage.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return nil, err
			}
		}
		a.log.Info("Using Postgres list store")
		return pg, nil
	}
	fileStore, err := storage.NewFileStore(a.cfg.Storage.StateDir)
	if err != nil {
		return nil, err
	}
	a.log.Info("Using file list store", "dir", a.cfg.Storage.StateDir)
	return fileStore, nil
}

func upstreamOptions(u configloader.UpstreamConfig) httpclient.Options {
	return httpclient.Options{
		BaseURL:   u.BaseURL,
		APIKey:    u.APIKey,
		Timeout:   time.Duration(u.TimeoutMillis) * time.Millisecond,
		RateLimit: u.RateLimitPerSecond,
		Burst:     u.Burst,
	}
}

// buildPipeline wires the upstream clients, the price cache and the
// portfolio pipeline.
func (a *app) buildPipeline(ctx context.Context) error {
	cfg := a.cfg
	retry := service.NewRetryPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseDelayMillis)*time.Millisecond,
		time.Duration(cfg.Retry.MaxDelayMillis)*time.Millisecond,
		a.log,
	)

	a.moralis = httpclient.NewMoralisClient(upstreamOptions(cfg.Providers.Moralis), a.zap)
	a.etherscan = httpclient.NewEtherscanClient(upstreamOptions(cfg.Providers.Etherscan), a.zap)

	providers := make([]port.BalanceProvider, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		switch name {
		case httpclient.MoralisName:
			providers = append(providers, a.moralis)
		case httpclient.GoldRushName:
			providers = append(providers, httpclient.NewGoldRushClient(upstreamOptions(cfg.Providers.GoldRush), a.zap))
		case clientprovider.RPCName:
			var tokenProvider port.TokenProvider = tokenloader.NewTokenLoader(cfg.Providers.RPC.TokenListDir, a.log)
			tokens, err := tokenProvider.GetTokensByNetwork(a.networks.GetAllNetworkDefinitions())
			if err != nil {
				return fmt.Errorf("failed to load token lists: %w", err)
			}
			rpc := clientprovider.NewRPCBalanceProvider(a.networks, tokens,
				time.Duration(cfg.Providers.RPC.RPCCallTimeoutSeconds)*time.Second, a.log)
			a.closers = append(a.closers, rpc.Close)
			providers = append(providers, rpc)
		}
	}
	a.log.Info("Balance providers configured", "order", cfg.Providers.Order)

	primary := httpclient.NewCoinGeckoClient(upstreamOptions(cfg.Providers.CoinGecko), a.zap)
	var dex port.PriceSource
	if cfg.Providers.DEXScreener.Enabled {
		dex = httpclient.NewDEXScreenerClient(
			upstreamOptions(cfg.Providers.DEXScreener.UpstreamConfig),
			cfg.Providers.DEXScreener.MaxTokensPerBatchRequest,
			a.networks.DEXScreenerChainIDs(),
			a.zap,
		)
	}
	source := service.NewRoutedPriceSource(primary, dex, retry, a.log)

	retention := time.Duration(cfg.PriceCache.RetentionSeconds) * time.Second
	var quotes port.QuoteStore
	switch cfg.PriceCache.Backend {
	case "redis":
		rs, err := quotestore.NewRedisStore(ctx, quotestore.RedisConfig{
			Addr:      cfg.PriceCache.Redis.Addr,
			Password:  cfg.PriceCache.Redis.Password,
			DB:        cfg.PriceCache.Redis.DB,
			KeyPrefix: cfg.PriceCache.Redis.KeyPrefix,
			Retention: retention,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = rs.Close() })
		quotes = rs
	default:
		quotes = quotestore.NewMemoryStore(retention)
	}

	a.priceCache = service.NewPriceCache(source, quotes, service.PriceCacheOptions{
		TTL:        time.Duration(cfg.PriceCache.TTLSeconds) * time.Second,
		BaselineID: cfg.PriceCache.BaselineID,
		Fallback:   cfg.PriceCache.Fallback,
	}, a.log)
	a.closers = append(a.closers, a.priceCache.Close)

	resolver := service.NewDefaultResolver(a.networks, cfg.Aggregator.SymbolPriceIDs, dex != nil)
	costBasis := service.NewCostBasisTable(cfg.Aggregator.CostBasis, a.alerts)
	aggregator := service.NewAggregator(resolver, costBasis, service.AvgCostMerge(cfg.Aggregator.AvgCostMerge), nil)

	fetcher := service.NewWalletFetcher(providers, a.networks, retry, a.log, cfg.Performance.MaxConcurrentRoutines)
	a.portfolio = service.NewPortfolioService(a.wallets, fetcher, a.priceCache, aggregator, a.log)
	a.closers = append(a.closers, a.portfolio.Close)
	return nil
}

// Close releases everything in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	logger.Sync()
}
