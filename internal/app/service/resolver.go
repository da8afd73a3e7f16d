package service

import (
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// defaultSymbolPriceIDs maps well-known symbols to price-source ids.
var defaultSymbolPriceIDs = map[string]string{
	"ETH":   "ethereum",
	"WETH":  "weth",
	"BTC":   "bitcoin",
	"WBTC":  "wrapped-bitcoin",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"MATIC": "matic-network",
	"POL":   "matic-network",
	"BNB":   "binancecoin",
	"WBNB":  "wbnb",
	"AVAX":  "avalanche-2",
	"ARB":   "arbitrum",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"DAI":   "dai",
	"AAVE":  "aave",
	"MKR":   "maker",
	"CRV":   "curve-dao-token",
	"LDO":   "lido-dao",
	"SHIB":  "shiba-inu",
	"PEPE":  "pepe",
}

// StaticResolver resolves by symbol through a fixed table.
type StaticResolver struct {
	table map[string]string
}

// NewStaticResolver builds the built-in table with overrides applied on top.
// Override keys are symbols, matched case-insensitively.
func NewStaticResolver(overrides map[string]string) *StaticResolver {
	table := make(map[string]string, len(defaultSymbolPriceIDs)+len(overrides))
	for sym, id := range defaultSymbolPriceIDs {
		table[sym] = id
	}
	for sym, id := range overrides {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if id == "" {
			delete(table, sym)
			continue
		}
		table[sym] = id
	}
	return &StaticResolver{table: table}
}

// Resolve implements port.PriceResolver.
func (r *StaticResolver) Resolve(ref entity.AssetRef) (string, bool) {
	id, ok := r.table[strings.ToUpper(strings.TrimSpace(ref.Symbol))]
	return id, ok
}

// NativeResolver prices native holdings with the native asset id of their chain.
type NativeResolver struct {
	networks port.NetworkDefinitionProvider
}

func NewNativeResolver(np port.NetworkDefinitionProvider) *NativeResolver {
	return &NativeResolver{networks: np}
}

// Resolve implements port.PriceResolver.
func (r *NativeResolver) Resolve(ref entity.AssetRef) (string, bool) {
	if !ref.IsNative || r.networks == nil {
		return "", false
	}
	nd, ok := r.networks.GetNetworkDefinitionByName(ref.Chain)
	if !ok || nd.NativePriceID == "" {
		return "", false
	}
	return nd.NativePriceID, true
}

// DexResolver maps contract tokens to dex:<chain>:<address> ids.
type DexResolver struct{}

// Resolve implements port.PriceResolver.
func (DexResolver) Resolve(ref entity.AssetRef) (string, bool) {
	if ref.IsNative || ref.ContractAddress == "" || ref.Chain == "" {
		return "", false
	}
	return entity.DexPriceID(ref.Chain, ref.ContractAddress), true
}

// ChainResolver asks each resolver in turn; the first match wins.
type ChainResolver []port.PriceResolver

// Resolve implements port.PriceResolver.
func (c ChainResolver) Resolve(ref entity.AssetRef) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if id, ok := r.Resolve(ref); ok {
			return id, true
		}
	}
	return "", false
}

// NewDefaultResolver returns native, then static, then DEX resolution.
func NewDefaultResolver(np port.NetworkDefinitionProvider, overrides map[string]string, withDex bool) ChainResolver {
	chain := ChainResolver{NewNativeResolver(np), NewStaticResolver(overrides)}
	if withDex {
		chain = append(chain, DexResolver{})
	}
	return chain
}
