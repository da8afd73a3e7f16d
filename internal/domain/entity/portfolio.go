package entity

import "time"

// Asset is one aggregated position across every tracked wallet.
type Asset struct {
	Symbol                string   `json:"symbol"`
	Name                  string   `json:"name"`
	Balance               float64  `json:"balance"`
	Price                 float64  `json:"price"`
	Value                 float64  `json:"value"`
	AvgCost               float64  `json:"avgCost"`
	UnrealizedPL          float64  `json:"unrealizedPL"`
	ContributingAddresses []string `json:"contributingAddresses"`
	Chains                []string `json:"chains"`
}

// PortfolioSnapshot is an immutable, fully computed view of the portfolio.
// Snapshots are replaced as a whole and never modified after publication.
type PortfolioSnapshot struct {
	TotalValue         float64   `json:"totalValue"`
	TotalCost          float64   `json:"totalCost"`
	UnrealizedPL       float64   `json:"unrealizedPL"`
	RealizedPL         float64   `json:"realizedPL"`
	Assets             []Asset   `json:"assets"`
	LastUpdated        time.Time `json:"lastUpdated"`
	WalletCount        int       `json:"walletCount"`
	PlaceholderWallets int       `json:"placeholderWallets"`
}

// AssetBySymbol returns the asset with the given symbol, if present.
func (s *PortfolioSnapshot) AssetBySymbol(symbol string) (Asset, bool) {
	for _, a := range s.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}
