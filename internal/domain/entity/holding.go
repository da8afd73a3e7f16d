package entity

import "github.com/shopspring/decimal"

// ChainHoldings is what one provider returned for a wallet on one chain.
type ChainHoldings struct {
	Chain         string          `json:"chain"`
	NativeSymbol  string          `json:"nativeSymbol"`
	NativeName    string          `json:"nativeName"`
	NativeBalance decimal.Decimal `json:"nativeBalance"`
	Tokens        []TokenBalance  `json:"tokens"`
	Source        string          `json:"source"`
}

// WalletData is the result of fetching a single wallet.
// Placeholder is set when every provider failed and demo data was used instead.
type WalletData struct {
	Address     string          `json:"address"`
	Chains      []string        `json:"chains"`
	Holdings    []ChainHoldings `json:"holdings"`
	Placeholder bool            `json:"placeholder"`
}

// RawHolding is a single wallet's position in a single asset, in decimal units.
type RawHolding struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Balance         float64 `json:"balance"`
	WalletAddress   string  `json:"walletAddress"`
	ChainHint       string  `json:"chainHint"`
	ContractAddress string  `json:"contractAddress,omitempty"`
	IsNative        bool    `json:"isNative"`
}
