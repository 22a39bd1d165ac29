package services

import (
	"errors"
	"time"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Aggregate views are cached briefly; the score log itself moves fast.
const aggregateCacheTTL = 60 * time.Second

// LeaderboardService serves ranked views over the score log.
type LeaderboardService struct {
	DB      *gorm.DB
	Retrier *db.Retrier
	Cache   *cache.HybridCache
}

func NewLeaderboardService(gdb *gorm.DB, retrier *db.Retrier, hc *cache.HybridCache) *LeaderboardService {
	return &LeaderboardService{DB: gdb, Retrier: retrier, Cache: hc}
}

type LeaderboardEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	GameID    string    `json:"game_id"`
	ContentID string    `json:"content_id"`
	Score     float64   `json:"score"`
	Accuracy  *float64  `json:"accuracy"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

type LatestPlayedSummary struct {
	GameID         string    `json:"game_id"`
	GameName       string    `json:"game_name"`
	ContentID      string    `json:"content_id"`
	ContentName    string    `json:"content_name"`
	Score          float64   `json:"score"`
	LastPlayedTime time.Time `json:"last_played_time"`
}

// GetGameLeaderboard returns each user's single best entry for a game,
// ranked by score with the more recent entry winning ties.
func (s *LeaderboardService) GetGameLeaderboard(c *fiber.Ctx) error {
	gameID := c.Params("id")
	page, perPage := parsePagination(c)

	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		var game models.Game
		return tx.Select("id").First(&game, "id = ?", gameID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to verify game", err)
	}

	cacheKey := cache.KeyLeaderboard(gameID, page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	query := `
		SELECT id, user_id, game_id, content_id, score, accuracy, attempts, created_at
		FROM (
			SELECT l.*,
			       ROW_NUMBER() OVER (PARTITION BY l.user_id ORDER BY l.score DESC, l.created_at DESC) AS rn
			FROM game_score_logs l
			WHERE l.game_id = ?
		) ranked
		WHERE rn = 1
		ORDER BY score DESC, created_at DESC
		LIMIT ? OFFSET ?`

	var entries []LeaderboardEntry
	var total int64
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Model(&models.GameScoreLog{}).
			Where("game_id = ?", gameID).
			Distinct("user_id").
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Raw(query, gameID, perPage, (page-1)*perPage).Scan(&entries).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch leaderboard", err)
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}

	response := fiber.Map{
		"leaderboard": entries,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages(total, perPage),
	}
	_ = s.Cache.SetJSON(c.Context(), cacheKey, response, aggregateCacheTTL)
	return c.JSON(response)
}

// GetLatestPlayed lists the distinct games the caller played, most
// recent first, carrying the game and content names of the latest entry.
// Games or content that have since been deleted drop out of the view.
func (s *LeaderboardService) GetLatestPlayed(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}
	page, perPage := parsePagination(c)

	cacheKey := cache.KeyLatestPlayed(userID, page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	query := `
		SELECT ranked.game_id, g.name AS game_name,
		       ranked.content_id, ct.title AS content_name,
		       ranked.score, ranked.created_at AS last_played_time
		FROM (
			SELECT l.*,
			       ROW_NUMBER() OVER (PARTITION BY l.game_id ORDER BY l.created_at DESC) AS rn
			FROM game_score_logs l
			WHERE l.user_id = ?
		) ranked
		INNER JOIN games g ON g.id = ranked.game_id AND g.deleted_at IS NULL
		INNER JOIN contents ct ON ct.id = ranked.content_id AND ct.deleted_at IS NULL
		WHERE ranked.rn = 1
		ORDER BY ranked.created_at DESC
		LIMIT ? OFFSET ?`

	var games []LatestPlayedSummary
	var total int64
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Model(&models.GameScoreLog{}).
			Where("user_id = ?", userID).
			Distinct("game_id").
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Raw(query, userID, perPage, (page-1)*perPage).Scan(&games).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch latest played games", err)
	}
	if games == nil {
		games = []LatestPlayedSummary{}
	}

	response := fiber.Map{
		"games":       games,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages(total, perPage),
	}
	_ = s.Cache.SetJSON(c.Context(), cacheKey, response, aggregateCacheTTL)
	return c.JSON(response)
}
