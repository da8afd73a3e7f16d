package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// NetworkDefinitionProvider provides network definitions.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	defs    map[string]entity.NetworkDefinition
	ordered []entity.NetworkDefinition
}

// RPCOverride replaces the RPC endpoint (and optionally the DEX Screener id)
// of a known network.
type RPCOverride struct {
	Identifier         string
	RPCURL             string
	DEXScreenerChainID string
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ChainID:            1,
		Name:               "Ethereum Mainnet",
		Identifier:         "eth",
		NativeSymbol:       "ETH",
		NativeName:         "Ethereum",
		NativePriceID:      "ethereum",
		Decimals:           18,
		PrimaryRPCURL:      "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:    []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL:   "https://etherscan.io",
		DEXScreenerChainID: "ethereum",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:            137,
		Name:               "Polygon PoS",
		Identifier:         "polygon",
		NativeSymbol:       "MATIC",
		NativeName:         "Polygon",
		NativePriceID:      "matic-network",
		Decimals:           18,
		PrimaryRPCURL:      "https://polygon-rpc.com/",
		FallbackRPCURLs:    []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL:   "https://polygonscan.com",
		DEXScreenerChainID: "polygon",
	}
	BSC = entity.NetworkDefinition{
		ChainID:            56,
		Name:               "BNB Smart Chain",
		Identifier:         "bsc",
		NativeSymbol:       "BNB",
		NativeName:         "BNB",
		NativePriceID:      "binancecoin",
		Decimals:           18,
		PrimaryRPCURL:      "https://1rpc.io/bnb",
		FallbackRPCURLs:    []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL:   "https://bscscan.com",
		DEXScreenerChainID: "bsc",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:            42161,
		Name:               "Arbitrum One",
		Identifier:         "arbitrum",
		NativeSymbol:       "ETH",
		NativeName:         "Ethereum",
		NativePriceID:      "ethereum",
		Decimals:           18,
		PrimaryRPCURL:      "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:    []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL:   "https://arbiscan.io",
		DEXScreenerChainID: "arbitrum",
	}
	Avalanche = entity.NetworkDefinition{
		ChainID:            43114,
		Name:               "Avalanche C-Chain",
		Identifier:         "avalanche",
		NativeSymbol:       "AVAX",
		NativeName:         "Avalanche",
		NativePriceID:      "avalanche-2",
		Decimals:           18,
		PrimaryRPCURL:      "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs:    []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
		BlockExplorerURL:   "https://snowtrace.io",
		DEXScreenerChainID: "avalanche",
	}
)

func knownDefinitions() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{Ethereum, Polygon, BSC, Arbitrum, Avalanche}
}

// NewNetworkDefinitionProvider creates a provider with every known network,
// applying RPC overrides from configuration.
func NewNetworkDefinitionProvider(log port.Logger, overrides []RPCOverride) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger: log,
		defs:   make(map[string]entity.NetworkDefinition),
	}
	for _, def := range knownDefinitions() {
		p.defs[def.Identifier] = def
	}

	for _, o := range overrides {
		id := strings.ToLower(o.Identifier)
		def, ok := p.defs[id]
		if !ok {
			p.logger.Warn(fmt.Sprintf("RPC override for unknown network '%s'. Skipping.", o.Identifier))
			continue
		}
		if o.RPCURL != "" {
			// указанный в конфиге узел идёт первым, публичные становятся запасными
			def.FallbackRPCURLs = append([]string{def.PrimaryRPCURL}, def.FallbackRPCURLs...)
			def.PrimaryRPCURL = o.RPCURL
		}
		if o.DEXScreenerChainID != "" {
			def.DEXScreenerChainID = o.DEXScreenerChainID
		}
		p.defs[id] = def
		p.logger.Debug("Applied network override", "network", id, "rpc_primary", def.PrimaryRPCURL)
	}

	for _, def := range p.defs {
		p.ordered = append(p.ordered, def)
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].ChainID < p.ordered[j].ChainID })
	return p
}

// GetAllNetworkDefinitions returns every known network ordered by chain id.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defsCopy := make([]entity.NetworkDefinition, len(p.ordered))
	copy(defsCopy, p.ordered)
	return defsCopy
}

// GetNetworkDefinitionByName returns a network definition by its identifier ("eth", "bsc", ...).
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.defs[strings.ToLower(identifier)]
	return def, ok
}

// GetNetworkDefinitionByChainID returns a network definition by its chain id.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range p.ordered {
		if def.ChainID == chainID {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

// DEXScreenerChainIDs maps network identifiers to DEX Screener chain ids.
func (p *NetworkDefinitionProvider) DEXScreenerChainIDs() map[string]string {
	out := make(map[string]string, len(p.defs))
	for id, def := range p.defs {
		if def.DEXScreenerChainID != "" {
			out[id] = def.DEXScreenerChainID
		}
	}
	return out
}
