package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/core/ports"
)

const defaultTTL = 10 * time.Minute

// SellerStatsCache fronts the seller stats store with a Redis read-through
// cache. Cache faults fall through to the store; the turn never fails on a
// cold or unreachable cache.
type SellerStatsCache struct {
	client *redis.Client
	next   ports.SellerStatsProvider
	ttl    time.Duration
	log    *slog.Logger
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewSellerStatsCache(cfg Config, next ports.SellerStatsProvider, log *slog.Logger) *SellerStatsCache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &SellerStatsCache{client: client, next: next, ttl: cfg.TTL, log: log}
}

func (c *SellerStatsCache) SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error) {
	key := c.key(sellerID)

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var stats domain.SellerStats
		if jsonErr := json.Unmarshal([]byte(raw), &stats); jsonErr == nil {
			return stats, nil
		}
		// Corrupt entry: drop it and refill from the store.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("seller_stats_cache_read_failed", "seller_id", sellerID, "error", err)
	}

	stats, err := c.next.SellerStats(ctx, sellerID)
	if err != nil {
		return domain.SellerStats{}, err
	}

	if payload, jsonErr := json.Marshal(stats); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.log.Warn("seller_stats_cache_write_failed", "seller_id", sellerID, "error", setErr)
		}
	}
	return stats, nil
}

func (c *SellerStatsCache) Close() error {
	return c.client.Close()
}

func (c *SellerStatsCache) key(sellerID string) string {
	return fmt.Sprintf("seller_stats:%s", sellerID)
}
