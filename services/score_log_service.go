package services

import (
	"errors"
	"log"
	"time"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PartitionProvisioner keeps the score log's monthly partitions ahead
// of the writes that need them.
type PartitionProvisioner interface {
	EnsurePartition(t time.Time) (db.PartitionResult, error)
	EnsureCurrentAndNext() error
}

// ScoreLogService owns the append-only score log: writes land in the
// partition for their month, reads filter across all partitions.
type ScoreLogService struct {
	DB         *gorm.DB
	Retrier    *db.Retrier
	Partitions PartitionProvisioner
	Cache      *cache.HybridCache
}

func NewScoreLogService(gdb *gorm.DB, retrier *db.Retrier, partitions PartitionProvisioner, hc *cache.HybridCache) *ScoreLogService {
	return &ScoreLogService{DB: gdb, Retrier: retrier, Partitions: partitions, Cache: hc}
}

// RecordScoreLog appends one play result. The log is insert-only; a
// replayed level produces a second row, never an update.
func (s *ScoreLogService) RecordScoreLog(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var input struct {
		GameID      string         `json:"game_id"`
		ContentID   string         `json:"content_id"`
		Score       *float64       `json:"score"`
		Accuracy    *float64       `json:"accuracy"`
		Attempts    *int           `json:"attempts"`
		StartTime   *time.Time     `json:"start_time"`
		EndTime     *time.Time     `json:"end_time"`
		Cycles      *int           `json:"cycles"`
		LevelConfig datatypes.JSON `json:"level_config"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if input.GameID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game_id is required"})
	}
	if input.ContentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content_id is required"})
	}
	if input.Score == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score is required"})
	}
	if *input.Score < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score must be >= 0"})
	}
	if input.Accuracy != nil && (*input.Accuracy < 0 || *input.Accuracy > 100) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "accuracy must be between 0 and 100"})
	}
	attempts := 1
	if input.Attempts != nil {
		if *input.Attempts < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "attempts must be >= 1"})
		}
		attempts = *input.Attempts
	}
	if input.Cycles != nil && *input.Cycles < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cycles must be >= 0"})
	}

	// Referenced rows must exist and be linked before anything is written.
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		var game models.Game
		return tx.Select("id").First(&game, "id = ?", input.GameID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to verify game", err)
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		var content models.Content
		return tx.Select("id").First(&content, "id = ?", input.ContentID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to verify content", err)
	}

	var link models.ContentGame
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&link, "content_id = ? AND game_id = ?", input.ContentID, input.GameID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content is not linked to this game"})
		}
		return storageError(c, "failed to verify content-game link", err)
	}

	now := time.Now().UTC()
	if _, err := s.Partitions.EnsurePartition(now); err != nil {
		return storageError(c, "failed to prepare score log storage", err)
	}

	entry := models.GameScoreLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		GameID:      input.GameID,
		ContentID:   input.ContentID,
		Score:       *input.Score,
		Accuracy:    input.Accuracy,
		Attempts:    attempts,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Cycles:      input.Cycles,
		LevelConfig: input.LevelConfig,
		CreatedAt:   now,
	}
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Create(&entry).Error
	})
	if err != nil {
		return storageError(c, "failed to record score", err)
	}

	// Play counter bump is best-effort; the log row is already durable.
	if err := s.DB.WithContext(c.Context()).
		Model(&models.ContentGame{}).
		Where("id = ?", link.ID).
		UpdateColumn("play_count", gorm.Expr("play_count + 1")).Error; err != nil {
		log.Printf("⚠️  Failed to bump play count for link %s: %v", link.ID, err)
	}

	s.Cache.DeletePattern(c.Context(), cache.PatternLeaderboard(input.GameID))
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayed(userID))

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// GetScoreLogs lists log entries newest-first with optional user_id,
// game_id and content_id filters.
func (s *ScoreLogService) GetScoreLogs(c *fiber.Ctx) error {
	page, perPage := parsePagination(c)

	filters := func(tx *gorm.DB) *gorm.DB {
		q := tx.Model(&models.GameScoreLog{})
		if userID := c.Query("user_id"); userID != "" {
			q = q.Where("user_id = ?", userID)
		}
		if gameID := c.Query("game_id"); gameID != "" {
			q = q.Where("game_id = ?", gameID)
		}
		if contentID := c.Query("content_id"); contentID != "" {
			q = q.Where("content_id = ?", contentID)
		}
		return q
	}

	var logs []models.GameScoreLog
	var total int64
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := filters(tx).Count(&total).Error; err != nil {
			return err
		}
		return filters(tx).
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&logs).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch score logs", err)
	}
	if logs == nil {
		logs = []models.GameScoreLog{}
	}

	return c.JSON(fiber.Map{
		"logs":        logs,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages(total, perPage),
	})
}
