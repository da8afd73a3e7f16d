package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
)

// RPCName is the provider name of the direct node balance source.
const RPCName = "rpc"

const defaultProviderConnectionTimeout = 10 * time.Second

// RPCBalanceProvider implements port.BalanceProvider on top of EVM nodes.
// Token balances are read for the token lists loaded per network.
type RPCBalanceProvider struct {
	networks          port.NetworkDefinitionProvider
	tokens            map[string][]entity.TokenInfo
	logger            port.Logger
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration

	mu      sync.Mutex
	clients map[string]*EVMClient
}

// NewRPCBalanceProvider creates the provider. Clients are dialed lazily per network.
func NewRPCBalanceProvider(
	networks port.NetworkDefinitionProvider,
	tokens map[string][]entity.TokenInfo,
	rpcCallTimeout time.Duration,
	log port.Logger,
) *RPCBalanceProvider {
	return &RPCBalanceProvider{
		networks:          networks,
		tokens:            tokens,
		logger:            log,
		connectionTimeout: defaultProviderConnectionTimeout,
		rpcCallTimeout:    rpcCallTimeout,
		clients:           make(map[string]*EVMClient),
	}
}

// Name implements port.BalanceProvider.
func (p *RPCBalanceProvider) Name() string { return RPCName }

// getClient returns the cached client of a network, dialing it on first use.
func (p *RPCBalanceProvider) getClient(chain string) (*EVMClient, error) {
	netDef, ok := p.networks.GetNetworkDefinitionByName(chain)
	if !ok {
		return nil, &entity.ConfigError{Field: "chain", Message: fmt.Sprintf("unknown network %q", chain)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, exists := p.clients[netDef.Identifier]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", "network", netDef.Name, "rpc_primary", netDef.PrimaryRPCURL)
	newClient, err := NewEVMClient(netDef, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, &entity.ProviderError{Provider: RPCName, Kind: entity.KindNetwork, Message: err.Error(), Err: err}
	}
	p.clients[netDef.Identifier] = newClient
	return newClient, nil
}

// FetchBalances reads native and token balances in a single batch.
func (p *RPCBalanceProvider) FetchBalances(ctx context.Context, address, chain string) (string, []entity.TokenBalance, error) {
	if chain == "" {
		chain = entity.DefaultChain
	}
	client, err := p.getClient(chain)
	if err != nil {
		return "", nil, err
	}
	native, tokens, err := client.GetBalances(ctx, address, p.tokens[client.Definition().Identifier])
	if err != nil {
		kind := entity.KindNetwork
		if ctx.Err() != nil || isTimeout(err) {
			kind = entity.KindTimeout
		}
		return "", nil, &entity.ProviderError{Provider: RPCName, Kind: kind, Message: err.Error(), Err: err}
	}
	p.logger.Debug("RPC balances read", "chain", chain, "address", address,
		"native", utils.FormatBigInt(native, uint8(client.Definition().Decimals)), "tokens", len(tokens))
	return native.String(), tokens, nil
}

// FetchNativeBalance implements port.BalanceProvider.
func (p *RPCBalanceProvider) FetchNativeBalance(ctx context.Context, address, chain string) (string, error) {
	native, _, err := p.FetchBalances(ctx, address, chain)
	return native, err
}

// FetchTokenBalances implements port.BalanceProvider.
func (p *RPCBalanceProvider) FetchTokenBalances(ctx context.Context, address, chain string) ([]entity.TokenBalance, error) {
	_, tokens, err := p.FetchBalances(ctx, address, chain)
	return tokens, err
}

// Close closes every dialed client.
func (p *RPCBalanceProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
