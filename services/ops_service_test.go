package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, "game:id:abc", []byte(`{}`), time.Minute))
	_, ok := env.cache.Get(ctx, "game:id:abc")
	require.True(t, ok)
	_, ok = env.cache.Get(ctx, "game:id:missing")
	require.False(t, ok)

	resp := env.doJSON(t, http.MethodGet, "/cache/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, float64(2), body["total_requests"])
	assert.Equal(t, float64(1), body["hits"])
	assert.Equal(t, float64(1), body["misses"])
	assert.Equal(t, float64(50), body["hit_rate_percent"])
	assert.Equal(t, float64(1), body["memory_cache_size"])

	layers := body["layers"].(map[string]any)
	memory := layers["memory"].(map[string]any)
	assert.Equal(t, true, memory["enabled"])
	assert.Equal(t, float64(1), memory["hits"])
	assert.Equal(t, false, layers["dynamodb"].(map[string]any)["enabled"])
	assert.Equal(t, false, layers["redis"].(map[string]any)["enabled"])
}

func TestCacheClearNarrowsBluntPatterns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Set(ctx, "content:id:a", []byte(`{}`), time.Minute))
	require.NoError(t, env.cache.Set(ctx, "game:id:b", []byte(`{}`), time.Minute))

	// No pattern at all falls back to the content namespace.
	resp := env.doJSON(t, http.MethodPost, "/cache/clear", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "cache cleared", body["message"])
	assert.Equal(t, "content:*", body["pattern"])
	assert.Equal(t, float64(1), body["keys_removed"])

	_, ok := env.cache.Get(ctx, "game:id:b")
	assert.True(t, ok, "unrelated namespaces survive a blunt clear")

	// A bare "*" is narrowed the same way.
	resp = env.doJSON(t, http.MethodPost, "/cache/clear", "", map[string]any{"pattern": "*"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "content:*", body["pattern"])
}

func TestCacheClearExplicitPattern(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.cache.Set(ctx, "game:id:a", []byte(`{}`), time.Minute))
	require.NoError(t, env.cache.Set(ctx, "game:list:1:20", []byte(`{}`), time.Minute))
	require.NoError(t, env.cache.Set(ctx, "content:id:c", []byte(`{}`), time.Minute))

	resp := env.doJSON(t, http.MethodPost, "/cache/clear", "", map[string]any{"pattern": "game:*"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "game:*", body["pattern"])
	assert.Equal(t, float64(2), body["keys_removed"])

	_, ok := env.cache.Get(ctx, "content:id:c")
	assert.True(t, ok)
}

func TestCacheHealthMemoryOnlyIsDegraded(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/cache/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	// The round trip works, but with no durable tier behind memory the
	// cache reports degraded rather than healthy.
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["set"])
	assert.Equal(t, "ok", checks["get"])
	assert.Equal(t, "ok", checks["delete"])

	layers := body["layers"].(map[string]any)
	assert.Equal(t, true, layers["memory"])
	assert.Equal(t, false, layers["dynamodb"])
	assert.Equal(t, false, layers["redis"])
}

func TestDatabaseStatus(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/database/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, "available", body["status"])
	assert.GreaterOrEqual(t, body["latency_ms"].(float64), float64(0))
	pool := body["pool"].(map[string]any)
	assert.Contains(t, pool, "open_connections")
	assert.Contains(t, pool, "in_use")
	assert.Contains(t, pool, "idle")

	_, present := body["last_wake_at"]
	assert.False(t, present, "no wake probe has fired yet")
}

func TestDatabaseHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/database/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestDatabaseWake(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/database/wake", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "awake", body["status"])
	assert.Equal(t, "database is responding", body["message"])

	// The wake timestamp now shows up in the status report.
	resp = env.doJSON(t, http.MethodGet, "/database/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Contains(t, body, "last_wake_at")
}
