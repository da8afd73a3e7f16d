package entity

import (
	"strings"
	"time"
)

// PriceTable maps a price-source asset id (e.g. "ethereum") to its USD price.
type PriceTable map[string]float64

// Clone returns an independent copy of the table.
func (t PriceTable) Clone() PriceTable {
	out := make(PriceTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// PriceQuote is a single cached USD quote.
type PriceQuote struct {
	AssetID   string    `json:"assetId"`
	USDPrice  float64   `json:"usdPrice"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// PricesUpdated is published by the price cache after a successful upstream fetch.
type PricesUpdated struct {
	Prices    PriceTable
	FetchedAt time.Time
}

// AssetRef identifies a holding for price-id resolution.
type AssetRef struct {
	Symbol          string
	Chain           string
	ContractAddress string
	IsNative        bool
}

// BaselinePriceID is the native asset of the primary chain. It is always
// requested so the headline asset is priced even with no tokens.
const BaselinePriceID = "ethereum"

// DefaultFallbackPrices returns the hardcoded table served when the price
// source is unreachable and nothing has been cached yet.
func DefaultFallbackPrices() PriceTable {
	return PriceTable{
		"ethereum":  2941.03,
		"bitcoin":   65000,
		"chainlink": 14.5,
		"uniswap":   8.2,
	}
}

// DexPriceIDPrefix marks price ids served by a DEX price source:
// dex:<chain>:<contract address>.
const DexPriceIDPrefix = "dex:"

// DexPriceID builds the price id of a contract token on a chain.
func DexPriceID(chain, address string) string {
	return DexPriceIDPrefix + strings.ToLower(chain) + ":" + strings.ToLower(address)
}

// ParseDexPriceID splits a dex price id into chain and address.
func ParseDexPriceID(id string) (chain, address string, ok bool) {
	if !strings.HasPrefix(id, DexPriceIDPrefix) {
		return "", "", false
	}
	chain, address, ok = strings.Cut(strings.TrimPrefix(id, DexPriceIDPrefix), ":")
	if !ok || chain == "" || address == "" {
		return "", "", false
	}
	return chain, address, true
}
