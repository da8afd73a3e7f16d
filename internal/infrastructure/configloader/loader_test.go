package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"portfolio_tracker/internal/domain/entity"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMillis != 300 || cfg.Retry.MaxDelayMillis != 2400 {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.PriceCache.TTLSeconds != 30 || cfg.PriceCache.BaselineID != "ethereum" || cfg.PriceCache.RetentionSeconds != 0 {
		t.Errorf("price cache defaults = %+v", cfg.PriceCache)
	}
	if cfg.PriceCache.Fallback["ethereum"] != 2941.03 {
		t.Errorf("fallback ethereum = %v", cfg.PriceCache.Fallback["ethereum"])
	}
	if cfg.Scheduler.DebounceMillis != 500 || cfg.Scheduler.PriceIntervalSeconds != 60 || cfg.Scheduler.FullIntervalSeconds != 300 {
		t.Errorf("scheduler defaults = %+v", cfg.Scheduler)
	}
	if len(cfg.Providers.Order) != 2 || cfg.Providers.Order[0] != "moralis" || cfg.Providers.Order[1] != "goldrush" {
		t.Errorf("provider order = %v", cfg.Providers.Order)
	}
	if cfg.Aggregator.AvgCostMerge != "simple" {
		t.Errorf("avgCostMerge = %q", cfg.Aggregator.AvgCostMerge)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yml", `
server:
  port: "8080"
providers:
  order: [goldrush, moralis]
  moralis:
    apiKey: from-file
aggregator:
  avgCostMerge: weighted
  costBasis:
    ETH: 2352.82
priceCache:
  ttlSeconds: 10
  retentionSeconds: 86400
`)
	t.Setenv("MORALIS_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Providers.Order[0] != "goldrush" {
		t.Errorf("order = %v", cfg.Providers.Order)
	}
	if cfg.Providers.Moralis.APIKey != "from-env" {
		t.Errorf("env override not applied: %q", cfg.Providers.Moralis.APIKey)
	}
	if cfg.Aggregator.CostBasis["ETH"] != 2352.82 {
		t.Errorf("costBasis = %v", cfg.Aggregator.CostBasis)
	}
	if cfg.PriceCache.TTLSeconds != 10 {
		t.Errorf("ttl = %d", cfg.PriceCache.TTLSeconds)
	}
	if cfg.PriceCache.RetentionSeconds != 86400 {
		t.Errorf("retention = %d", cfg.PriceCache.RetentionSeconds)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
port = "9090"

[scheduler]
debounce_millis = 250

[providers.dexscreener]
enabled = true
base_url = "http://dex.local"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Scheduler.DebounceMillis != 250 {
		t.Errorf("unexpected config: %+v %+v", cfg.Server, cfg.Scheduler)
	}
	if !cfg.Providers.DEXScreener.Enabled || cfg.Providers.DEXScreener.BaseURL != "http://dex.local" {
		t.Errorf("dexscreener = %+v", cfg.Providers.DEXScreener)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeFile(t, "config.yml", "providers:\n  order: [moralis, etherscan]\n")
	_, err := Load(path)
	var cfgErr *entity.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "providers.order" {
		t.Errorf("field = %q", cfgErr.Field)
	}
}

func TestRedisEnvSwitchesBackend(t *testing.T) {
	t.Setenv("PORTFOLIO_REDIS_ADDR", "localhost:6379")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PriceCache.Backend != "redis" || cfg.PriceCache.Redis.Addr != "localhost:6379" {
		t.Errorf("price cache = %+v", cfg.PriceCache)
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{}
	cfg.Providers.Moralis.APIKey = "secret"
	out := cfg.Redacted()
	if out.Providers.Moralis.APIKey != "***" {
		t.Errorf("key not redacted")
	}
	if cfg.Providers.Moralis.APIKey != "secret" {
		t.Errorf("original mutated")
	}
}
