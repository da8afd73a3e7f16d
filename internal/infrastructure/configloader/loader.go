package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"portfolio_tracker/internal/domain/entity"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/config.yml"

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port        string   `yaml:"port" toml:"port"`
	CORSOrigins []string `yaml:"corsOrigins" toml:"cors_origins"`
	Swagger     bool     `yaml:"swagger" toml:"swagger"`
	Pprof       bool     `yaml:"pprof" toml:"pprof"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// UpstreamConfig describes one upstream HTTP API.
type UpstreamConfig struct {
	APIKey             string  `yaml:"apiKey" toml:"api_key"`
	BaseURL            string  `yaml:"baseURL" toml:"base_url"`
	TimeoutMillis      int64   `yaml:"timeoutMillis" toml:"timeout_millis"`
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond" toml:"rate_limit_per_second"`
	Burst              int     `yaml:"burst" toml:"burst"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	UpstreamConfig           `yaml:",inline"`
	Enabled                  bool `yaml:"enabled" toml:"enabled"`
	MaxTokensPerBatchRequest int  `yaml:"maxTokensPerBatchRequest" toml:"max_tokens_per_batch_request"`
}

// NetworkNodeConfig overrides the RPC endpoint of a known network.
type NetworkNodeConfig struct {
	Name               string `yaml:"name" toml:"name"`
	RPCURL             string `yaml:"rpcURL" toml:"rpc_url"`
	DEXScreenerChainID string `yaml:"dexScreenerChainId" toml:"dexscreener_chain_id"`
	ChainID            uint64 `yaml:"chainID" toml:"chain_id"`
}

// RPCConfig configures the direct JSON-RPC balance provider.
type RPCConfig struct {
	TokenListDir          string              `yaml:"tokenListDir" toml:"token_list_dir"`
	RPCCallTimeoutSeconds int                 `yaml:"rpcCallTimeoutSeconds" toml:"rpc_call_timeout_seconds"`
	Networks              []NetworkNodeConfig `yaml:"networks" toml:"networks"`
}

// ProvidersConfig lists every upstream and the balance provider order.
type ProvidersConfig struct {
	Order       []string          `yaml:"order" toml:"order"`
	Moralis     UpstreamConfig    `yaml:"moralis" toml:"moralis"`
	GoldRush    UpstreamConfig    `yaml:"goldrush" toml:"goldrush"`
	CoinGecko   UpstreamConfig    `yaml:"coingecko" toml:"coingecko"`
	Etherscan   UpstreamConfig    `yaml:"etherscan" toml:"etherscan"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener" toml:"dexscreener"`
	RPC         RPCConfig         `yaml:"rpc" toml:"rpc"`
}

// RetryConfig holds the upstream retry policy.
type RetryConfig struct {
	MaxAttempts     int   `yaml:"maxAttempts" toml:"max_attempts"`
	BaseDelayMillis int64 `yaml:"baseDelayMillis" toml:"base_delay_millis"`
	MaxDelayMillis  int64 `yaml:"maxDelayMillis" toml:"max_delay_millis"`
}

// RedisConfig holds the shared quote store connection.
type RedisConfig struct {
	Addr      string `yaml:"addr" toml:"addr"`
	Password  string `yaml:"password" toml:"password"`
	DB        int    `yaml:"db" toml:"db"`
	KeyPrefix string `yaml:"keyPrefix" toml:"key_prefix"`
}

// PriceCacheConfig holds the price cache configuration.
type PriceCacheConfig struct {
	TTLSeconds       int                `yaml:"ttlSeconds" toml:"ttl_seconds"`
	BaselineID       string             `yaml:"baselineID" toml:"baseline_id"`
	Fallback         map[string]float64 `yaml:"fallback" toml:"fallback"`
	Backend          string             `yaml:"backend" toml:"backend"` // memory | redis
	Redis            RedisConfig        `yaml:"redis" toml:"redis"`
	RetentionSeconds int                `yaml:"retentionSeconds" toml:"retention_seconds"` // 0 keeps the last good quote forever
}

// AggregatorConfig holds portfolio aggregation settings.
type AggregatorConfig struct {
	AvgCostMerge   string             `yaml:"avgCostMerge" toml:"avg_cost_merge"` // simple | weighted
	CostBasis      map[string]float64 `yaml:"costBasis" toml:"cost_basis"`
	SymbolPriceIDs map[string]string  `yaml:"symbolPriceIDs" toml:"symbol_price_ids"`
}

// SchedulerConfig holds refresh timings.
type SchedulerConfig struct {
	DebounceMillis       int64 `yaml:"debounceMillis" toml:"debounce_millis"`
	PriceIntervalSeconds int   `yaml:"priceIntervalSeconds" toml:"price_interval_seconds"`
	FullIntervalSeconds  int   `yaml:"fullIntervalSeconds" toml:"full_interval_seconds"`
}

// PostgresConfig holds the Postgres list store connection.
type PostgresConfig struct {
	DSN           string `yaml:"dsn" toml:"dsn"`
	MaxConns      int32  `yaml:"maxConns" toml:"max_conns"`
	RunMigrations bool   `yaml:"runMigrations" toml:"run_migrations"`
}

// StorageConfig selects where wallets and alerts are persisted.
type StorageConfig struct {
	Backend         string         `yaml:"backend" toml:"backend"` // file | postgres
	StateDir        string         `yaml:"stateDir" toml:"state_dir"`
	WalletsSeedFile string         `yaml:"walletsSeedFile" toml:"wallets_seed_file"`
	Postgres        PostgresConfig `yaml:"postgres" toml:"postgres"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines" toml:"max_concurrent_routines"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
	Providers   ProvidersConfig   `yaml:"providers" toml:"providers"`
	Retry       RetryConfig       `yaml:"retry" toml:"retry"`
	PriceCache  PriceCacheConfig  `yaml:"priceCache" toml:"price_cache"`
	Aggregator  AggregatorConfig  `yaml:"aggregator" toml:"aggregator"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" toml:"scheduler"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Performance PerformanceConfig `yaml:"performance" toml:"performance"`
}

// PathFromEnv returns CONFIG_PATH or the default path.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the configuration file (YAML or TOML, chosen by extension),
// loads .env, applies environment overrides and fills defaults.
// A missing file is not an error: defaults and environment are used.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)

	// .env может отсутствовать
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logrus.Warnf("Config file %s not found, using defaults", path)
	default:
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Providers.Moralis.APIKey, "MORALIS_API_KEY")
	setStr(&cfg.Providers.GoldRush.APIKey, "GOLDRUSH_API_KEY")
	setStr(&cfg.Providers.Etherscan.APIKey, "ETHERSCAN_API_KEY")
	setStr(&cfg.Providers.CoinGecko.APIKey, "COINGECKO_API_KEY")
	if addr := os.Getenv("PORTFOLIO_REDIS_ADDR"); addr != "" {
		cfg.PriceCache.Redis.Addr = addr
		cfg.PriceCache.Backend = "redis"
	}
	setStr(&cfg.PriceCache.Redis.Password, "PORTFOLIO_REDIS_PASSWORD")
	if dsn := os.Getenv("PORTFOLIO_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.Postgres.DSN = dsn
		cfg.Storage.Backend = "postgres"
	}
	setStr(&cfg.Server.Port, "PORTFOLIO_PORT")
	setStr(&cfg.Logging.Level, "PORTFOLIO_LOG_LEVEL")
	setInt(&cfg.Performance.MaxConcurrentRoutines, "PORTFOLIO_MAX_CONCURRENCY")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3001"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"moralis", "goldrush"}
	}
	defaultUpstream(&cfg.Providers.Moralis, "moralis", "https://deep-index.moralis.io/api/v2", 10000, 5)
	defaultUpstream(&cfg.Providers.GoldRush, "goldrush", "https://api.covalenthq.com/v1", 10000, 4)
	defaultUpstream(&cfg.Providers.CoinGecko, "coingecko", "https://api.coingecko.com/api/v3", 10000, 0.5)
	defaultUpstream(&cfg.Providers.Etherscan, "etherscan", "https://api.etherscan.io/api", 10000, 5)
	defaultUpstream(&cfg.Providers.DEXScreener.UpstreamConfig, "dexscreener", "https://api.dexscreener.com", 10000, 5)
	if cfg.Providers.DEXScreener.MaxTokensPerBatchRequest <= 0 {
		cfg.Providers.DEXScreener.MaxTokensPerBatchRequest = 30 // DEXScreener limit
	}
	if cfg.Providers.RPC.TokenListDir == "" {
		cfg.Providers.RPC.TokenListDir = "data/tokens"
	}
	if cfg.Providers.RPC.RPCCallTimeoutSeconds <= 0 {
		cfg.Providers.RPC.RPCCallTimeoutSeconds = 10
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMillis <= 0 {
		cfg.Retry.BaseDelayMillis = 300
	}
	if cfg.Retry.MaxDelayMillis <= 0 {
		cfg.Retry.MaxDelayMillis = 2400
	}

	if cfg.PriceCache.TTLSeconds <= 0 {
		cfg.PriceCache.TTLSeconds = 30
	}
	if cfg.PriceCache.BaselineID == "" {
		cfg.PriceCache.BaselineID = "ethereum"
	}
	if len(cfg.PriceCache.Fallback) == 0 {
		cfg.PriceCache.Fallback = entity.DefaultFallbackPrices()
	}
	if cfg.PriceCache.Backend == "" {
		cfg.PriceCache.Backend = "memory"
	}
	if cfg.PriceCache.Redis.KeyPrefix == "" {
		cfg.PriceCache.Redis.KeyPrefix = "price:"
	}

	if cfg.Aggregator.AvgCostMerge == "" {
		cfg.Aggregator.AvgCostMerge = "simple"
	}

	if cfg.Scheduler.DebounceMillis <= 0 {
		cfg.Scheduler.DebounceMillis = 500
	}
	if cfg.Scheduler.PriceIntervalSeconds <= 0 {
		cfg.Scheduler.PriceIntervalSeconds = 60
	}
	if cfg.Scheduler.FullIntervalSeconds <= 0 {
		cfg.Scheduler.FullIntervalSeconds = 300
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.StateDir == "" {
		cfg.Storage.StateDir = "data/state"
	}
	if cfg.Storage.WalletsSeedFile == "" {
		cfg.Storage.WalletsSeedFile = "data/wallets.txt"
	}
	if cfg.Storage.Postgres.MaxConns <= 0 {
		cfg.Storage.Postgres.MaxConns = 4
	}

	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10 // Default to 10 if not specified or invalid
	}
}

func defaultUpstream(u *UpstreamConfig, name, baseURL string, timeoutMillis int64, rps float64) {
	if u.BaseURL == "" {
		u.BaseURL = baseURL
		logrus.Infof("%s.baseURL not set, defaulting to %s", name, baseURL)
	}
	if u.TimeoutMillis <= 0 {
		u.TimeoutMillis = timeoutMillis
	}
	if u.RateLimitPerSecond <= 0 {
		u.RateLimitPerSecond = rps
	}
	if u.Burst <= 0 {
		u.Burst = 1
	}
}

// Validate checks enumerated settings. Missing API keys are not an error
// here: each client fails fast with a ConfigError when it is used.
func (c *Config) Validate() error {
	for _, name := range c.Providers.Order {
		switch name {
		case "moralis", "goldrush", "rpc":
		default:
			return &entity.ConfigError{Field: "providers.order", Message: fmt.Sprintf("unknown provider %q", name)}
		}
	}
	switch c.PriceCache.Backend {
	case "memory", "redis":
	default:
		return &entity.ConfigError{Field: "priceCache.backend", Message: fmt.Sprintf("unknown backend %q", c.PriceCache.Backend)}
	}
	if c.PriceCache.Backend == "redis" && c.PriceCache.Redis.Addr == "" {
		return &entity.ConfigError{Field: "priceCache.redis.addr", Message: "required for redis backend"}
	}
	switch c.Aggregator.AvgCostMerge {
	case "simple", "weighted":
	default:
		return &entity.ConfigError{Field: "aggregator.avgCostMerge", Message: fmt.Sprintf("unknown policy %q", c.Aggregator.AvgCostMerge)}
	}
	switch c.Storage.Backend {
	case "file", "postgres":
	default:
		return &entity.ConfigError{Field: "storage.backend", Message: fmt.Sprintf("unknown backend %q", c.Storage.Backend)}
	}
	if c.Storage.Backend == "postgres" && c.Storage.Postgres.DSN == "" {
		return &entity.ConfigError{Field: "storage.postgres.dsn", Message: "required for postgres backend"}
	}
	return nil
}

// Redacted returns a copy of the config with secrets masked, for logging.
func (c *Config) Redacted() Config {
	out := *c
	redact(&out.Providers.Moralis.APIKey)
	redact(&out.Providers.GoldRush.APIKey)
	redact(&out.Providers.CoinGecko.APIKey)
	redact(&out.Providers.Etherscan.APIKey)
	redact(&out.PriceCache.Redis.Password)
	redact(&out.Storage.Postgres.DSN)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
