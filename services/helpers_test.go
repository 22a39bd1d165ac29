package services_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/handlers"
	"game-score-system/models"
	"game-score-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubPartitions satisfies the provisioner without Postgres DDL. It
// records how often each month was ensured versus actually created.
type stubPartitions struct {
	mu      sync.Mutex
	months  map[string]bool
	ensures int
	creates int
	failErr error
}

func (s *stubPartitions) EnsurePartition(t time.Time) (db.PartitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensures++
	if s.failErr != nil {
		return db.PartitionExists, s.failErr
	}
	if s.months == nil {
		s.months = make(map[string]bool)
	}
	name := db.PartitionName(t)
	if s.months[name] {
		return db.PartitionExists, nil
	}
	s.months[name] = true
	s.creates++
	return db.PartitionCreated, nil
}

func (s *stubPartitions) EnsureCurrentAndNext() error {
	now := time.Now().UTC()
	if _, err := s.EnsurePartition(now); err != nil {
		return err
	}
	_, next := db.MonthBounds(now)
	_, err := s.EnsurePartition(next)
	return err
}

func (s *stubPartitions) counts() (ensures, creates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures, s.creates
}

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	cache      *cache.HybridCache
	memory     *cache.MemoryTier
	partitions *stubPartitions
}

// newTestEnv wires the full HTTP stack against an isolated in-memory
// sqlite database. The score log lives in a plain table here; monthly
// partitioning is a storage detail the queries never see.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.Game{},
		&models.Content{},
		&models.ContentGame{},
		&models.GameScoreLog{},
	))

	retrier := db.NewRetrier(gdb)
	memory := cache.NewMemoryTier(cache.DefaultMemoryMaxEntries, cache.DefaultMemoryMaxTTL)
	hybrid := cache.NewHybridCache(memory, nil, nil)
	partitions := &stubPartitions{}

	app := fiber.New()
	scoreService := services.NewScoreLogService(gdb, retrier, partitions, hybrid)
	boardService := services.NewLeaderboardService(gdb, retrier, hybrid)
	gameService := services.NewGameService(gdb, retrier, hybrid)
	contentService := services.NewContentService(gdb, retrier, hybrid)
	cacheService := services.NewCacheService(hybrid)
	dbService := services.NewDatabaseService(gdb, retrier)

	handlers.SetupScoreRoutes(app, scoreService, boardService)
	handlers.SetupGameRoutes(app, gameService)
	handlers.SetupContentRoutes(app, contentService)
	handlers.SetupOpsRoutes(app, cacheService, dbService)

	return &testEnv{
		app:        app,
		db:         gdb,
		cache:      hybrid,
		memory:     memory,
		partitions: partitions,
	}
}

// doJSON runs one request through the app. userID lands in X-User-ID
// the way the gateway would inject it.
func (env *testEnv) doJSON(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (env *testEnv) seedGame(t *testing.T, name string) models.Game {
	t.Helper()
	game := models.Game{
		ID:     uuid.NewString(),
		Name:   name,
		Slug:   slug.Make(name),
		Status: models.GameStatusPublished,
	}
	require.NoError(t, env.db.Create(&game).Error)
	return game
}

func (env *testEnv) seedContent(t *testing.T, userID, title string, public bool) models.Content {
	t.Helper()
	content := models.Content{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Slug:        slug.Make(title),
		ContentType: models.ContentTypeNotation,
		IsPublic:    public,
	}
	require.NoError(t, env.db.Create(&content).Error)
	return content
}

func (env *testEnv) seedLink(t *testing.T, contentID, gameID string) models.ContentGame {
	t.Helper()
	link := models.ContentGame{
		ID:        uuid.NewString(),
		ContentID: contentID,
		GameID:    gameID,
	}
	require.NoError(t, env.db.Create(&link).Error)
	return link
}

func (env *testEnv) seedLog(t *testing.T, userID, gameID, contentID string, score float64, at time.Time) models.GameScoreLog {
	t.Helper()
	entry := models.GameScoreLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		GameID:    gameID,
		ContentID: contentID,
		Score:     score,
		Attempts:  1,
		CreatedAt: at.UTC(),
	}
	require.NoError(t, env.db.Create(&entry).Error)
	return entry
}
