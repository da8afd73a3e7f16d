package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
)

// AvgCostMerge selects how per-wallet cost estimates merge into one asset.
type AvgCostMerge string

const (
	// MergeSimple is the plain mean of the contributors' estimates.
	MergeSimple AvgCostMerge = "simple"
	// MergeWeighted weights each estimate by the contributor's balance.
	MergeWeighted AvgCostMerge = "weighted"
)

// Aggregator turns wallet data and a price table into a snapshot.
// It holds no state between calls: the same input gives the same output.
type Aggregator struct {
	resolver  port.PriceResolver
	costBasis port.CostBasisProvider
	merge     AvgCostMerge
	clock     port.Clock
}

// NewAggregator creates an aggregator. costBasis and clock may be nil.
func NewAggregator(resolver port.PriceResolver, costBasis port.CostBasisProvider, merge AvgCostMerge, clock port.Clock) *Aggregator {
	if merge != MergeWeighted {
		merge = MergeSimple
	}
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{resolver: resolver, costBasis: costBasis, merge: merge, clock: clock}
}

// PriceIDs returns the price ids needed to price the given wallet data.
func (a *Aggregator) PriceIDs(results []entity.WalletData) []string {
	holdings, err := Flatten(results)
	if err != nil {
		// битые балансы всё равно упадут в Aggregate
		return nil
	}
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if id, ok := a.resolve(h); ok {
			ids = append(ids, id)
		}
	}
	return utils.UniqueSorted(ids)
}

// Flatten turns wallet data into one RawHolding per native balance and per
// token. Zero balances are dropped.
func Flatten(results []entity.WalletData) ([]entity.RawHolding, error) {
	var out []entity.RawHolding
	for _, w := range results {
		for _, h := range w.Holdings {
			if h.NativeBalance.Sign() < 0 {
				return nil, &entity.AggregationError{Wallet: w.Address, Symbol: h.NativeSymbol, Message: "negative native balance"}
			}
			if h.NativeBalance.Sign() > 0 {
				out = append(out, entity.RawHolding{
					Symbol:        h.NativeSymbol,
					Name:          h.NativeName,
					Balance:       h.NativeBalance.InexactFloat64(),
					WalletAddress: w.Address,
					ChainHint:     h.Chain,
					IsNative:      true,
				})
			}
			for _, t := range h.Tokens {
				bal, err := utils.ToDecimalUnits(t.RawBalance, t.Decimals)
				if err != nil {
					return nil, &entity.AggregationError{Wallet: w.Address, Symbol: t.Symbol, Message: err.Error()}
				}
				if bal.IsZero() {
					continue
				}
				out = append(out, entity.RawHolding{
					Symbol:          t.Symbol,
					Name:            t.Name,
					Balance:         bal.InexactFloat64(),
					WalletAddress:   w.Address,
					ChainHint:       h.Chain,
					ContractAddress: t.ContractAddress,
				})
			}
		}
	}
	return out, nil
}

type assetGroup struct {
	asset    entity.Asset
	costs    []float64
	balances []float64
}

// Aggregate builds the snapshot for results priced with prices.
func (a *Aggregator) Aggregate(results []entity.WalletData, prices entity.PriceTable) (*entity.PortfolioSnapshot, error) {
	holdings, err := Flatten(results)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*assetGroup)
	var order []string
	for _, h := range holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return nil, &entity.AggregationError{Wallet: h.WalletAddress, Message: "holding without symbol"}
		}
		if math.IsNaN(h.Balance) || math.IsInf(h.Balance, 0) || h.Balance < 0 {
			return nil, &entity.AggregationError{Wallet: h.WalletAddress, Symbol: h.Symbol, Message: "invalid balance"}
		}

		price := 0.0
		if id, ok := a.resolve(h); ok {
			price = prices[id]
		}
		avgCost := 0.0
		if a.costBasis != nil {
			avgCost = a.costBasis.AvgCost(h.WalletAddress, h.Symbol)
		}
		value := h.Balance * price
		upl := 0.0
		if avgCost > 0 {
			upl = value - h.Balance*avgCost
		}

		g, ok := groups[h.Symbol]
		if !ok {
			g = &assetGroup{asset: entity.Asset{Symbol: h.Symbol, Name: h.Name}}
			groups[h.Symbol] = g
			order = append(order, h.Symbol)
		}
		g.asset.Balance += h.Balance
		g.asset.Value += value
		g.asset.UnrealizedPL += upl
		if g.asset.Price == 0 {
			g.asset.Price = price
		}
		if !utils.ContainsFold(g.asset.ContributingAddresses, h.WalletAddress) {
			g.asset.ContributingAddresses = append(g.asset.ContributingAddresses, h.WalletAddress)
		}
		g.asset.Chains = append(g.asset.Chains, h.ChainHint)
		if avgCost > 0 {
			g.costs = append(g.costs, avgCost)
			g.balances = append(g.balances, h.Balance)
		}
	}

	assets := make([]entity.Asset, 0, len(order))
	for _, sym := range order {
		g := groups[sym]
		g.asset.AvgCost = a.mergeCost(g.costs, g.balances)
		g.asset.Chains = utils.UniqueSorted(g.asset.Chains)
		assets = append(assets, g.asset)
	}
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Value != assets[j].Value {
			return assets[i].Value > assets[j].Value
		}
		return assets[i].Symbol < assets[j].Symbol
	})

	snap := &entity.PortfolioSnapshot{
		Assets:      assets,
		LastUpdated: a.clock(),
		WalletCount: len(results),
	}
	for _, as := range assets {
		snap.TotalValue += as.Value
		snap.TotalCost += as.Balance * as.AvgCost
		snap.UnrealizedPL += as.UnrealizedPL
	}
	for _, w := range results {
		if w.Placeholder {
			snap.PlaceholderWallets++
		}
	}
	return snap, nil
}

func (a *Aggregator) resolve(h entity.RawHolding) (string, bool) {
	if a.resolver == nil {
		return "", false
	}
	return a.resolver.Resolve(entity.AssetRef{
		Symbol:          h.Symbol,
		Chain:           h.ChainHint,
		ContractAddress: h.ContractAddress,
		IsNative:        h.IsNative,
	})
}

func (a *Aggregator) mergeCost(costs, balances []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	if a.merge == MergeWeighted {
		var num, den float64
		for i, c := range costs {
			num += c * balances[i]
			den += balances[i]
		}
		if den == 0 {
			return 0
		}
		return num / den
	}
	sum := 0.0
	for _, c := range costs {
		sum += c
	}
	return sum / float64(len(costs))
}
