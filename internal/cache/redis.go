package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto-exchange/internal/models"
)

// RedisCache is the read-path cache in front of the stores.
// CACHING STRATEGY:
//   - Recent trades: short rolling feed per currency pair
//   - Last trade price: fast ticker lookups per pair
//   - Order status: 1s TTL so pollers do not hammer PostgreSQL
//
// The matching path never reads from here; the store stays the source of
// truth.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	feedSize   int64
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client:     client,
		defaultTTL: time.Second,
		feedSize:   50,
	}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// PairKey builds the cache key segment for an unordered currency pair.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// AddRecentTrade pushes a trade onto the pair's rolling feed and records its
// price as the pair's last trade price.
func (c *RedisCache) AddRecentTrade(ctx context.Context, t *models.Trade) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	pair := PairKey(t.BuyCurrencyID, t.SellCurrencyID)
	feedKey := "trades:recent:" + pair

	pipe := c.client.Pipeline()
	pipe.LPush(ctx, feedKey, body)
	pipe.LTrim(ctx, feedKey, 0, c.feedSize-1)
	pipe.Expire(ctx, feedKey, 5*time.Minute)
	pipe.Set(ctx, "trades:last_price:"+pair, t.Price.String(), 5*time.Minute)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentTrades returns up to limit trades from the pair's feed, newest
// first.
func (c *RedisCache) RecentTrades(ctx context.Context, buyCurrencyID, sellCurrencyID string, limit int64) ([]*models.Trade, error) {
	feedKey := "trades:recent:" + PairKey(buyCurrencyID, sellCurrencyID)

	raw, err := c.client.LRange(ctx, feedKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	trades := make([]*models.Trade, 0, len(raw))
	for _, item := range raw {
		var t models.Trade
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// LastPrice returns the pair's last trade price, or ok=false on a miss.
func (c *RedisCache) LastPrice(ctx context.Context, buyCurrencyID, sellCurrencyID string) (string, bool, error) {
	val, err := c.client.Get(ctx, "trades:last_price:"+PairKey(buyCurrencyID, sellCurrencyID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetOrderStatus caches an order's status with a short TTL.
func (c *RedisCache) SetOrderStatus(ctx context.Context, orderID string, status models.Status) error {
	return c.client.Set(ctx, "order:status:"+orderID, string(status), c.defaultTTL).Err()
}

// GetOrderStatus returns a cached order status, or ok=false on a miss.
func (c *RedisCache) GetOrderStatus(ctx context.Context, orderID string) (models.Status, bool, error) {
	val, err := c.client.Get(ctx, "order:status:"+orderID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.Status(val), true, nil
}
