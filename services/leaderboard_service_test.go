package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"game-score-system/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameLeaderboardBestScorePerUser(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "Tap Rhythm")
	content := env.seedContent(t, "author-1", "Evening Etude", true)
	now := time.Now().UTC()

	// u1 improves over three sessions; only the best row may surface.
	env.seedLog(t, "u1", game.ID, content.ID, 50, now.Add(-3*time.Hour))
	env.seedLog(t, "u1", game.ID, content.ID, 80, now.Add(-2*time.Hour))
	latest80 := env.seedLog(t, "u1", game.ID, content.ID, 80, now.Add(-1*time.Hour))
	env.seedLog(t, "u2", game.ID, content.ID, 90, now.Add(-30*time.Minute))

	resp := env.doJSON(t, http.MethodGet, "/games/"+game.ID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, float64(2), body["total"], "one row per user")
	entries := body["leaderboard"].([]any)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	assert.Equal(t, "u2", first["user_id"])
	assert.Equal(t, float64(90), first["score"])

	second := entries[1].(map[string]any)
	assert.Equal(t, "u1", second["user_id"])
	assert.Equal(t, float64(80), second["score"])
	// Equal scores tie-break on recency: the newer 80 wins.
	assert.Equal(t, latest80.ID, second["id"])
}

func TestGameLeaderboardUnknownGame(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/games/nope/leaderboard", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGameLeaderboardEmptyGame(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "Tap Rhythm")

	resp := env.doJSON(t, http.MethodGet, "/games/"+game.ID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["total"])
	assert.Empty(t, body["leaderboard"])
	assert.Equal(t, float64(0), body["total_pages"])
}

func TestGameLeaderboardPagination(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "Tap Rhythm")
	content := env.seedContent(t, "author-1", "Evening Etude", true)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		env.seedLog(t, "user-"+string(rune('a'+i)), game.ID, content.ID, float64(10*i), now.Add(time.Duration(-i)*time.Minute))
	}

	resp := env.doJSON(t, http.MethodGet, "/games/"+game.ID+"/leaderboard?per_page=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(3), body["total_pages"])
	entries := body["leaderboard"].([]any)
	require.Len(t, entries, 2)
	// Page 2 of a descending board: third and fourth best.
	assert.Equal(t, float64(20), entries[0].(map[string]any)["score"])
	assert.Equal(t, float64(10), entries[1].(map[string]any)["score"])
}

func TestGameLeaderboardServesFromCache(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "Tap Rhythm")
	content := env.seedContent(t, "author-1", "Evening Etude", true)
	env.seedLog(t, "u1", game.ID, content.ID, 50, time.Now().UTC())

	resp := env.doJSON(t, http.MethodGet, "/games/"+game.ID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_, ok := env.cache.Get(context.Background(), cache.KeyLeaderboard(game.ID, 1, 20))
	assert.True(t, ok, "first read must populate the cache")

	// A row written behind the cache's back stays invisible until the
	// entry expires or a recording invalidates it.
	env.seedLog(t, "u2", game.ID, content.ID, 99, time.Now().UTC())
	resp = env.doJSON(t, http.MethodGet, "/games/"+game.ID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total"])
}

func TestLatestPlayedDistinctGames(t *testing.T) {
	env := newTestEnv(t)
	g1 := env.seedGame(t, "Tap Rhythm")
	g2 := env.seedGame(t, "Beat Chase")
	c1 := env.seedContent(t, "author-1", "Evening Etude", true)
	c2 := env.seedContent(t, "author-1", "Morning Drill", true)
	now := time.Now().UTC()

	env.seedLog(t, "u1", g1.ID, c1.ID, 10, now.Add(-3*time.Hour))
	env.seedLog(t, "u1", g2.ID, c2.ID, 20, now.Add(-2*time.Hour))
	env.seedLog(t, "u1", g1.ID, c2.ID, 30, now.Add(-1*time.Hour))
	env.seedLog(t, "u2", g1.ID, c1.ID, 99, now)

	resp := env.doJSON(t, http.MethodGet, "/scores/latest-played", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, float64(2), body["total"], "one row per distinct game")
	games := body["games"].([]any)
	require.Len(t, games, 2)

	first := games[0].(map[string]any)
	assert.Equal(t, g1.ID, first["game_id"])
	assert.Equal(t, "Tap Rhythm", first["game_name"])
	// The latest g1 session used c2, so its title is carried.
	assert.Equal(t, c2.ID, first["content_id"])
	assert.Equal(t, "Morning Drill", first["content_name"])
	assert.Equal(t, float64(30), first["score"])

	second := games[1].(map[string]any)
	assert.Equal(t, g2.ID, second["game_id"])
}

func TestLatestPlayedOmitsDeletedGames(t *testing.T) {
	env := newTestEnv(t)
	g1 := env.seedGame(t, "Tap Rhythm")
	g2 := env.seedGame(t, "Beat Chase")
	c1 := env.seedContent(t, "author-1", "Evening Etude", true)
	now := time.Now().UTC()

	env.seedLog(t, "u1", g1.ID, c1.ID, 10, now.Add(-2*time.Hour))
	env.seedLog(t, "u1", g2.ID, c1.ID, 20, now.Add(-1*time.Hour))
	require.NoError(t, env.db.Delete(&g2).Error)

	resp := env.doJSON(t, http.MethodGet, "/scores/latest-played", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	games := body["games"].([]any)
	require.Len(t, games, 1)
	assert.Equal(t, g1.ID, games[0].(map[string]any)["game_id"])
}

func TestLatestPlayedRequiresUser(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodGet, "/scores/latest-played", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
