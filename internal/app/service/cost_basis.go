package service

import (
	"strings"

	"portfolio_tracker/internal/domain/entity"
)

// AlertLister returns the current price alerts.
type AlertLister interface {
	List() []entity.PriceAlert
}

// CostBasisTable implements port.CostBasisProvider from configuration and
// from the cost basis users enter on their price alerts.
//
// Lookup order: "<wallet address>:<SYMBOL>" config entry, the newest alert
// for the symbol with a cost basis, then the "<SYMBOL>" config entry.
type CostBasisTable struct {
	table  map[string]float64
	alerts AlertLister
}

// NewCostBasisTable creates the provider. alerts may be nil.
func NewCostBasisTable(table map[string]float64, alerts AlertLister) *CostBasisTable {
	t := make(map[string]float64, len(table))
	for k, v := range table {
		if v > 0 {
			t[costBasisKey(k)] = v
		}
	}
	return &CostBasisTable{table: t, alerts: alerts}
}

// AvgCost implements port.CostBasisProvider. Zero means unknown.
func (c *CostBasisTable) AvgCost(walletAddress, symbol string) float64 {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if v, ok := c.table[costBasisKey(walletAddress+":"+symbol)]; ok {
		return v
	}
	if c.alerts != nil {
		var best entity.PriceAlert
		for _, a := range c.alerts.List() {
			if a.CostBasis <= 0 || !strings.EqualFold(a.Symbol, symbol) {
				continue
			}
			if best.ID == "" || a.CreatedAt.After(best.CreatedAt) {
				best = a
			}
		}
		if best.ID != "" {
			return best.CostBasis
		}
	}
	return c.table[symbol]
}

// адрес в нижнем регистре, символ в верхнем
func costBasisKey(k string) string {
	addr, sym, ok := strings.Cut(strings.TrimSpace(k), ":")
	if !ok {
		return strings.ToUpper(addr)
	}
	return strings.ToLower(addr) + ":" + strings.ToUpper(sym)
}
