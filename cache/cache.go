// cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"path"
	"sync/atomic"
	"time"
)

// ErrMiss is the sentinel every tier returns for an absent or expired
// key. Any other error means the tier itself failed.
var ErrMiss = errors.New("cache: miss")

// Tier is one storage layer of the hybrid cache. Get returns the
// payload together with its remaining TTL (0 when unknown).
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Available() bool
}

// HybridCache chains tiers fastest-first: memory, then DynamoDB, then
// Redis. Reads fall through on miss and on tier failure; a hit in a
// slower tier repopulates memory when its remaining TTL fits. Writes
// fan out to every tier best-effort.
type HybridCache struct {
	memory *MemoryTier
	tiers  []Tier

	hits     atomic.Int64
	misses   atomic.Int64
	tierHits map[string]*atomic.Int64
}

// NewHybridCache builds the chain. durable and fallback may be nil
// when the corresponding backend is not configured.
func NewHybridCache(memory *MemoryTier, durable, fallback Tier) *HybridCache {
	h := &HybridCache{
		memory:   memory,
		tiers:    []Tier{memory},
		tierHits: make(map[string]*atomic.Int64),
	}
	if durable != nil {
		h.tiers = append(h.tiers, durable)
	}
	if fallback != nil {
		h.tiers = append(h.tiers, fallback)
	}
	for _, t := range h.tiers {
		h.tierHits[t.Name()] = &atomic.Int64{}
	}
	return h
}

// Get walks the tiers in order and returns the first hit. Tier errors
// are logged and treated as misses so a broken backend never breaks a
// read path.
func (h *HybridCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, tier := range h.tiers {
		if !tier.Available() {
			continue
		}
		payload, remaining, err := tier.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			log.Printf("⚠️  Cache tier %s read failed for %s: %v", tier.Name(), key, err)
			continue
		}

		h.hits.Add(1)
		h.tierHits[tier.Name()].Add(1)

		if i > 0 && remaining > 0 && remaining <= h.memory.MaxTTL() {
			if err := h.memory.Set(ctx, key, payload, remaining); err != nil {
				log.Printf("⚠️  Cache promote to memory failed for %s: %v", key, err)
			}
		}
		return payload, true
	}
	h.misses.Add(1)
	return nil, false
}

// GetJSON unmarshals a cached payload into out. A payload that no
// longer parses is purged and reported as a miss.
func (h *HybridCache) GetJSON(ctx context.Context, key string, out any) bool {
	payload, ok := h.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("⚠️  Cache entry %s is corrupt, purging: %v", key, err)
		h.Delete(ctx, key)
		return false
	}
	return true
}

// Set writes to every available tier. Only a memory failure is
// returned; slower tiers are best-effort.
func (h *HybridCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var memErr error
	for _, tier := range h.tiers {
		if !tier.Available() {
			continue
		}
		if err := tier.Set(ctx, key, value, ttl); err != nil {
			if tier == Tier(h.memory) {
				memErr = err
			}
			log.Printf("⚠️  Cache tier %s write failed for %s: %v", tier.Name(), key, err)
		}
	}
	return memErr
}

// SetJSON marshals v once and fans it out.
func (h *HybridCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Set(ctx, key, payload, ttl)
}

// Delete removes key from every tier.
func (h *HybridCache) Delete(ctx context.Context, key string) {
	for _, tier := range h.tiers {
		if !tier.Available() {
			continue
		}
		if err := tier.Delete(ctx, key); err != nil {
			log.Printf("⚠️  Cache tier %s delete failed for %s: %v", tier.Name(), key, err)
		}
	}
}

// DeletePattern removes every key matching the glob pattern from every
// tier and returns how many entries went away across tiers.
func (h *HybridCache) DeletePattern(ctx context.Context, pattern string) int {
	removed := 0
	for _, tier := range h.tiers {
		if !tier.Available() {
			continue
		}
		n, err := tier.DeletePattern(ctx, pattern)
		if err != nil {
			log.Printf("⚠️  Cache tier %s pattern delete failed for %s: %v", tier.Name(), pattern, err)
			continue
		}
		removed += n
	}
	return removed
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits            int64
	Misses          int64
	MemoryHits      int64
	DynamoHits      int64
	RedisHits       int64
	MemorySize      int
	MemoryMax       int
	DynamoAvailable bool
	RedisAvailable  bool
}

func (h *HybridCache) Stats() Stats {
	s := Stats{
		Hits:       h.hits.Load(),
		Misses:     h.misses.Load(),
		MemorySize: h.memory.Len(),
		MemoryMax:  h.memory.Max(),
	}
	for _, tier := range h.tiers {
		hits := h.tierHits[tier.Name()].Load()
		switch tier.Name() {
		case TierMemory:
			s.MemoryHits = hits
		case TierDynamo:
			s.DynamoHits = hits
			s.DynamoAvailable = tier.Available()
		case TierRedis:
			s.RedisHits = hits
			s.RedisAvailable = tier.Available()
		}
	}
	return s
}

// MatchPattern reports whether key matches a glob pattern. Patterns use
// path.Match syntax: "*" matches any run of characters except "/", and
// cache keys never contain "/", so "game:list:*" covers the namespace.
func MatchPattern(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
