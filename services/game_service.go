package services

import (
	"errors"
	"time"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	entityCacheTTL = 10 * time.Minute
	listCacheTTL   = 5 * time.Minute
)

// GameService owns the game catalog. Deleting a game never touches the
// score log; historical entries keep their game_id.
type GameService struct {
	DB      *gorm.DB
	Retrier *db.Retrier
	Cache   *cache.HybridCache
}

func NewGameService(gdb *gorm.DB, retrier *db.Retrier, hc *cache.HybridCache) *GameService {
	return &GameService{DB: gdb, Retrier: retrier, Cache: hc}
}

func (s *GameService) CreateGame(c *fiber.Ctx) error {
	var input struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Genre        string `json:"genre"`
		ThumbnailURL string `json:"thumbnail_url"`
		Status       string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	status := input.Status
	switch status {
	case "":
		status = models.GameStatusPublished
	case models.GameStatusDraft, models.GameStatusPublished:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status (use: draft, published)"})
	}

	game := models.Game{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Slug:         slug.Make(input.Name),
		Description:  input.Description,
		Genre:        input.Genre,
		ThumbnailURL: input.ThumbnailURL,
		Status:       status,
	}
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Create(&game).Error
	})
	if err != nil {
		return storageError(c, "failed to create game", err)
	}

	s.Cache.DeletePattern(c.Context(), cache.PatternGameLists())
	return c.Status(fiber.StatusCreated).JSON(game)
}

// GetAllGames lists published games alphabetically.
func (s *GameService) GetAllGames(c *fiber.Ctx) error {
	page, perPage := parsePagination(c)

	cacheKey := cache.KeyGameList(page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	var games []models.Game
	var total int64
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Model(&models.Game{}).
			Where("status = ?", models.GameStatusPublished).
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("status = ?", models.GameStatusPublished).
			Order("name ASC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&games).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch games", err)
	}
	if games == nil {
		games = []models.Game{}
	}

	response := fiber.Map{
		"games":       games,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages(total, perPage),
	}
	_ = s.Cache.SetJSON(c.Context(), cacheKey, response, listCacheTTL)
	return c.JSON(response)
}

func (s *GameService) GetGameByID(c *fiber.Ctx) error {
	id := c.Params("id")

	cacheKey := cache.KeyGameByID(id)
	var cached models.Game
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	var game models.Game
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&game, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to fetch game", err)
	}

	_ = s.Cache.SetJSON(c.Context(), cacheKey, game, entityCacheTTL)
	return c.JSON(game)
}

func (s *GameService) UpdateGame(c *fiber.Ctx) error {
	id := c.Params("id")

	var game models.Game
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&game, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to fetch game", err)
	}

	var input struct {
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		Genre        *string `json:"genre"`
		ThumbnailURL *string `json:"thumbnail_url"`
		Status       *string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if input.Name != nil {
		if *input.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name cannot be empty"})
		}
		game.Name = *input.Name
		game.Slug = slug.Make(*input.Name)
	}
	if input.Description != nil {
		game.Description = *input.Description
	}
	if input.Genre != nil {
		game.Genre = *input.Genre
	}
	if input.ThumbnailURL != nil {
		game.ThumbnailURL = *input.ThumbnailURL
	}
	if input.Status != nil {
		switch *input.Status {
		case models.GameStatusDraft, models.GameStatusPublished:
			game.Status = *input.Status
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status (use: draft, published)"})
		}
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Save(&game).Error
	})
	if err != nil {
		return storageError(c, "failed to update game", err)
	}

	s.invalidateGame(c, id)
	// The game name appears in every user's latest-played view.
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayedAll())
	return c.JSON(game)
}

// DeleteGame soft-deletes the game and hard-deletes its content links.
// Score log rows referencing the game stay untouched.
func (s *GameService) DeleteGame(c *fiber.Ctx) error {
	id := c.Params("id")

	var game models.Game
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&game, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to fetch game", err)
	}

	var links []models.ContentGame
	if err := s.DB.WithContext(c.Context()).Where("game_id = ?", id).Find(&links).Error; err != nil {
		return storageError(c, "failed to fetch game links", err)
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Transaction(func(inner *gorm.DB) error {
			if err := inner.Where("game_id = ?", id).Delete(&models.ContentGame{}).Error; err != nil {
				return err
			}
			return inner.Delete(&game).Error
		})
	})
	if err != nil {
		return storageError(c, "failed to delete game", err)
	}

	s.invalidateGame(c, id)
	s.Cache.DeletePattern(c.Context(), cache.PatternGameContent(id))
	s.Cache.DeletePattern(c.Context(), cache.PatternLeaderboard(id))
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayedAll())
	for _, link := range links {
		s.Cache.DeletePattern(c.Context(), cache.PatternContentGames(link.ContentID))
	}

	return c.JSON(fiber.Map{
		"message": "game deleted",
		"id":      id,
	})
}

// RestoreGame reverses a soft delete.
func (s *GameService) RestoreGame(c *fiber.Ctx) error {
	id := c.Params("id")

	var game models.Game
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Unscoped().First(&game, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to fetch game", err)
	}
	if game.DeletedAt.Time.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game is not deleted"})
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Unscoped().Model(&game).Update("deleted_at", nil).Error
	})
	if err != nil {
		return storageError(c, "failed to restore game", err)
	}

	s.invalidateGame(c, id)
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayedAll())
	return c.JSON(fiber.Map{
		"message": "game restored",
		"id":      id,
	})
}

// contentWithPlays is the flat row shape for a game's content listing.
type contentWithPlays struct {
	models.Content
	PlayCount int64 `json:"play_count"`
}

// GetGameContent lists the content linked to a game, most played first.
func (s *GameService) GetGameContent(c *fiber.Ctx) error {
	id := c.Params("id")
	page, perPage := parsePagination(c)

	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		var game models.Game
		return tx.Select("id").First(&game, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to verify game", err)
	}

	cacheKey := cache.KeyGameContent(id, page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	linked := func(tx *gorm.DB) *gorm.DB {
		return tx.Table("content_games").
			Joins("INNER JOIN contents ON contents.id = content_games.content_id AND contents.deleted_at IS NULL").
			Where("content_games.game_id = ?", id)
	}

	var rows []contentWithPlays
	var total int64
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := linked(tx).Count(&total).Error; err != nil {
			return err
		}
		return linked(tx).
			Select("contents.*, content_games.play_count").
			Order("content_games.play_count DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Scan(&rows).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch game content", err)
	}
	if rows == nil {
		rows = []contentWithPlays{}
	}

	response := fiber.Map{
		"content":     rows,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages(total, perPage),
	}
	_ = s.Cache.SetJSON(c.Context(), cacheKey, response, listCacheTTL)
	return c.JSON(response)
}

func (s *GameService) invalidateGame(c *fiber.Ctx, id string) {
	s.Cache.DeletePattern(c.Context(), cache.PatternGame(id))
	s.Cache.DeletePattern(c.Context(), cache.PatternGameLists())
}
