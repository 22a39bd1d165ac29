package services

import (
	"bytes"
	"math"
	"time"

	"game-score-system/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CacheService exposes the hybrid cache for operators: hit rates,
// manual invalidation and a live round-trip health probe.
type CacheService struct {
	Cache *cache.HybridCache
}

func NewCacheService(hc *cache.HybridCache) *CacheService {
	return &CacheService{Cache: hc}
}

func (s *CacheService) GetStats(c *fiber.Ctx) error {
	stats := s.Cache.Stats()

	totalRequests := stats.Hits + stats.Misses
	hitRate := 0.0
	if totalRequests > 0 {
		hitRate = math.Round(float64(stats.Hits)/float64(totalRequests)*10000) / 100
	}

	return c.JSON(fiber.Map{
		"total_requests":    totalRequests,
		"hits":              stats.Hits,
		"misses":            stats.Misses,
		"hit_rate_percent":  hitRate,
		"memory_cache_size": stats.MemorySize,
		"memory_cache_max":  stats.MemoryMax,
		"layers": fiber.Map{
			"memory": fiber.Map{
				"enabled": true,
				"hits":    stats.MemoryHits,
			},
			"dynamodb": fiber.Map{
				"enabled": stats.DynamoAvailable,
				"hits":    stats.DynamoHits,
			},
			"redis": fiber.Map{
				"enabled": stats.RedisAvailable,
				"hits":    stats.RedisHits,
			},
		},
	})
}

// ClearCache invalidates keys matching a glob pattern across all
// tiers. An empty or bare "*" pattern is narrowed to content keys so a
// sloppy request cannot wipe the whole cache.
func (s *CacheService) ClearCache(c *fiber.Ctx) error {
	var input struct {
		Pattern string `json:"pattern"`
	}
	_ = c.BodyParser(&input)

	pattern := input.Pattern
	if pattern == "" || pattern == "*" {
		pattern = "content:*"
	}

	removed := s.Cache.DeletePattern(c.Context(), pattern)
	return c.JSON(fiber.Map{
		"message":      "cache cleared",
		"pattern":      pattern,
		"keys_removed": removed,
	})
}

// GetHealth writes, reads back and deletes a probe key. Reports
// degraded when only process memory is serving, unhealthy when the
// round trip fails.
func (s *CacheService) GetHealth(c *fiber.Ctx) error {
	probeKey := "cache:health:" + uuid.NewString()
	probeValue := []byte(time.Now().UTC().Format(time.RFC3339Nano))

	checks := fiber.Map{}
	healthy := true

	if err := s.Cache.Set(c.Context(), probeKey, probeValue, 30*time.Second); err != nil {
		checks["set"] = "failed: " + err.Error()
		healthy = false
	} else {
		checks["set"] = "ok"
	}

	got, ok := s.Cache.Get(c.Context(), probeKey)
	switch {
	case !ok:
		checks["get"] = "failed: probe key missing"
		healthy = false
	case !bytes.Equal(got, probeValue):
		checks["get"] = "failed: probe value mismatch"
		healthy = false
	default:
		checks["get"] = "ok"
	}

	s.Cache.Delete(c.Context(), probeKey)
	checks["delete"] = "ok"

	stats := s.Cache.Stats()
	status := "healthy"
	code := fiber.StatusOK
	switch {
	case !healthy:
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	case !stats.DynamoAvailable && !stats.RedisAvailable:
		status = "degraded"
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
		"layers": fiber.Map{
			"memory":   true,
			"dynamodb": stats.DynamoAvailable,
			"redis":    stats.RedisAvailable,
		},
	})
}
