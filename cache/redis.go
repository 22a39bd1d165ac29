// cache/redis.go
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const TierRedis = "redis"

// RedisTier is the optional fallback layer. It is only consulted when
// both faster tiers miss, which keeps a small Redis useful without
// making it a dependency.
type RedisTier struct {
	client    *redis.Client
	available bool
}

// NewRedisTier connects and pings. An empty addr or a failed ping
// leaves the tier disabled.
func NewRedisTier(ctx context.Context, addr, password string, dbNum int) *RedisTier {
	t := &RedisTier{}
	if addr == "" {
		return t
	}

	t.client = redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          dbNum,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := t.client.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️  Redis cache tier disabled, %s unreachable: %v", addr, err)
		return t
	}
	t.available = true
	return t
}

func (t *RedisTier) Name() string    { return TierRedis }
func (t *RedisTier) Available() bool { return t.available }

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	payload, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrMiss
	}
	if err != nil {
		return nil, 0, err
	}

	remaining, err := t.client.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}
	return payload, remaining, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.client.Set(ctx, key, value, ttl).Err()
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	return t.client.Del(ctx, key).Err()
}

// DeletePattern walks the keyspace with SCAN so it never blocks the
// server the way KEYS would.
func (t *RedisTier) DeletePattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := t.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := t.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

func (t *RedisTier) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}
