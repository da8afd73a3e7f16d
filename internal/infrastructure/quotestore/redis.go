package quotestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio_tracker/internal/domain/entity"
)

// RedisConfig holds connection parameters for the Redis quote store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// Retention expires quotes not refreshed in time; zero keeps them forever.
	Retention time.Duration
}

// RedisStore shares quotes between instances. Each quote is a hash at
// "{prefix}{assetID}" with fields "price" and "ts" (Unix nanoseconds).
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore connects to Redis and pings it.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return newRedisStore(rdb, cfg), nil
}

func newRedisStore(rdb *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "price:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: cfg.Retention}
}

func (s *RedisStore) key(assetID string) string {
	return s.prefix + assetID
}

// Get reads the requested quotes with one pipeline; missing keys are omitted.
func (s *RedisStore) Get(ctx context.Context, ids []string) (map[string]entity.PriceQuote, error) {
	out := make(map[string]entity.PriceQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes pipeline: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, ok := parseQuote(id, vals)
		if !ok {
			continue
		}
		out[id] = q
	}
	return out, nil
}

// Set writes the quotes with one pipeline and, when a retention is
// configured, refreshes their expiry.
func (s *RedisStore) Set(ctx context.Context, quotes []entity.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, q := range quotes {
		key := s.key(q.AssetID)
		pipe.HSet(ctx, key, map[string]interface{}{
			"price": strconv.FormatFloat(q.USDPrice, 'f', -1, 64),
			"ts":    strconv.FormatInt(q.FetchedAt.UnixNano(), 10),
		})
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		} else {
			pipe.Persist(ctx, key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes pipeline: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func parseQuote(id string, vals map[string]string) (entity.PriceQuote, bool) {
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return entity.PriceQuote{}, false
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return entity.PriceQuote{}, false
	}
	return entity.PriceQuote{AssetID: id, USDPrice: price, FetchedAt: time.Unix(0, tsNano)}, true
}
