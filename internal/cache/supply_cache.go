package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/config"
	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/supply"
)

const (
	supplyKeyPrefix  = "otp:supply:"
	defaultSupplyTTL = time.Minute
	scanBatchSize    = 100
)

// SupplyCache is a read-through cache over a supply provider. Only clean
// reads are cached: errors, denied and failed incoming lookups always go back
// to the underlying provider so a transient failure is not pinned for a TTL.
type SupplyCache struct {
	inner  supply.Provider
	client *redis.Client
	ttl    time.Duration
}

// NewSupplyCache wraps the provider with a Redis read-through layer. Fails if
// Redis is unreachable so a misconfigured cache surfaces at startup.
func NewSupplyCache(cfg config.CacheConfig, inner supply.Provider) (*SupplyCache, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.SupplyTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultSupplyTTL
	}
	return &SupplyCache{inner: inner, client: client, ttl: ttl}, nil
}

func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func (c *SupplyCache) AvailableStock(ctx context.Context, itemCode, warehouse string) (supply.StockBalance, error) {
	key := stockKey(itemCode, warehouse)

	var cached supply.StockBalance
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	balance, err := c.inner.AvailableStock(ctx, itemCode, warehouse)
	if err != nil {
		return balance, err
	}
	c.set(ctx, key, balance)
	return balance, nil
}

func (c *SupplyCache) IncomingSupply(ctx context.Context, itemCode string, after domain.Date) (supply.IncomingResult, error) {
	key := incomingKey(itemCode, after)

	var cached supply.IncomingResult
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	result, err := c.inner.IncomingSupply(ctx, itemCode, after)
	if err != nil {
		return result, err
	}
	if result.Outcome == supply.AccessOK {
		c.set(ctx, key, result)
	}
	return result, nil
}

// Invalidate drops all cached supply entries. cmd/seed calls this after a
// fixture reload so stale balances do not linger for a TTL.
func (c *SupplyCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, supplyKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *SupplyCache) Close() error {
	return c.client.Close()
}

func (c *SupplyCache) get(ctx context.Context, key string, out any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("supply cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping undecodable supply cache entry")
		c.client.Del(ctx, key)
		return false
	}
	return true
}

func (c *SupplyCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("supply cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("supply cache write failed")
	}
}

func stockKey(itemCode, warehouse string) string {
	return fmt.Sprintf("%sstock:%s:%s", supplyKeyPrefix, strings.ToLower(itemCode), strings.ToLower(warehouse))
}

func incomingKey(itemCode string, after domain.Date) string {
	return fmt.Sprintf("%sincoming:%s:%s", supplyKeyPrefix, strings.ToLower(itemCode), after)
}
