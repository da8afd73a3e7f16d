package service

import (
	"testing"
	"time"

	"portfolio_tracker/internal/domain/entity"
	networkdefinition "portfolio_tracker/internal/infrastructure/network/definition"
	"portfolio_tracker/internal/pkg/logger"
)

func TestChainResolverOrder(t *testing.T) {
	np := networkdefinition.NewNetworkDefinitionProvider(logger.NewNop(), nil)
	r := NewDefaultResolver(np, map[string]string{"foo": "foo-token", "UNI": ""}, true)

	tests := []struct {
		name string
		ref  entity.AssetRef
		want string
		ok   bool
	}{
		{"native bsc", entity.AssetRef{Symbol: "BNB", Chain: "bsc", IsNative: true}, "binancecoin", true},
		{"native arbitrum", entity.AssetRef{Symbol: "ETH", Chain: "arbitrum", IsNative: true}, "ethereum", true},
		{"static symbol", entity.AssetRef{Symbol: "link", Chain: "eth", ContractAddress: "0x1"}, "chainlink", true},
		{"override", entity.AssetRef{Symbol: "FOO", Chain: "eth", ContractAddress: "0x2"}, "foo-token", true},
		{"removed by override", entity.AssetRef{Symbol: "UNI", Chain: "eth", ContractAddress: "0xAB"}, "dex:eth:0xab", true},
		{"unknown without contract", entity.AssetRef{Symbol: "BAR"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.ref)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Resolve() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStaticResolverWithoutDex(t *testing.T) {
	r := NewDefaultResolver(nil, nil, false)
	if _, ok := r.Resolve(entity.AssetRef{Symbol: "FOO", Chain: "eth", ContractAddress: "0x1"}); ok {
		t.Error("contract token should stay unresolved without the DEX resolver")
	}
	if id, ok := r.Resolve(entity.AssetRef{Symbol: "ETH", IsNative: true}); !ok || id != "ethereum" {
		t.Errorf("ETH = %q, %v", id, ok)
	}
}

type staticAlerts []entity.PriceAlert

func (s staticAlerts) List() []entity.PriceAlert { return s }

func TestCostBasisTableLookupOrder(t *testing.T) {
	alerts := staticAlerts{
		{ID: "1", Symbol: "ETH", CostBasis: 2000, CreatedAt: time.Unix(100, 0)},
		{ID: "2", Symbol: "ETH", CostBasis: 2200, CreatedAt: time.Unix(200, 0)},
		{ID: "3", Symbol: "LINK", CostBasis: 0},
	}
	c := NewCostBasisTable(map[string]float64{
		"eth":            2352.82,
		"link":           11,
		walletB + ":eth": 1500,
		"0xdead:uni":     -1,
	}, alerts)

	if got := c.AvgCost(walletB, "ETH"); got != 1500 {
		t.Errorf("wallet entry = %v, want 1500", got)
	}
	if got := c.AvgCost(walletA, "eth"); got != 2200 {
		t.Errorf("newest alert = %v, want 2200", got)
	}
	if got := c.AvgCost(walletA, "LINK"); got != 11 {
		t.Errorf("symbol entry = %v, want 11", got)
	}
	if got := c.AvgCost(walletA, "UNI"); got != 0 {
		t.Errorf("unknown = %v, want 0", got)
	}
}
