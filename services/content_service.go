package services

import (
	"errors"

	"game-score-system/cache"
	"game-score-system/db"
	"game-score-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ContentService owns user-authored content and its game links. All
// mutations require the caller to own the content.
type ContentService struct {
	DB      *gorm.DB
	Retrier *db.Retrier
	Cache   *cache.HybridCache
}

func NewContentService(gdb *gorm.DB, retrier *db.Retrier, hc *cache.HybridCache) *ContentService {
	return &ContentService{DB: gdb, Retrier: retrier, Cache: hc}
}

func (s *ContentService) CreateContent(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ContentType string `json:"content_type"`
		IsPublic    *bool  `json:"is_public"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	contentType := input.ContentType
	switch contentType {
	case "":
		contentType = models.ContentTypeNotation
	case models.ContentTypeNotation, models.ContentTypeMedia, models.ContentTypeLink:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid content_type (use: notation, media, link)"})
	}
	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	content := models.Content{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       input.Title,
		Slug:        slug.Make(input.Title),
		Description: input.Description,
		ContentType: contentType,
		IsPublic:    isPublic,
	}
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Create(&content).Error
	})
	if err != nil {
		return storageError(c, "failed to create content", err)
	}

	s.Cache.DeletePattern(c.Context(), cache.PatternContentListUser(userID))
	if isPublic {
		s.Cache.DeletePattern(c.Context(), cache.PatternContentListPublic())
	}
	return c.Status(fiber.StatusCreated).JSON(content)
}

// GetContentByID returns one content row. Private content is only
// visible to its owner; to anyone else it does not exist.
func (s *ContentService) GetContentByID(c *fiber.Ctx) error {
	id := c.Params("id")
	viewerID, _ := c.Locals("user_id").(string)

	cacheKey := cache.KeyContentByID(id)
	var content models.Content
	if !s.Cache.GetJSON(c.Context(), cacheKey, &content) {
		err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
			return tx.First(&content, "id = ?", id).Error
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
			}
			return storageError(c, "failed to fetch content", err)
		}
		_ = s.Cache.SetJSON(c.Context(), cacheKey, content, entityCacheTTL)
	}

	if !content.IsPublic && content.UserID != viewerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
	}
	return c.JSON(content)
}

// GetMyContent lists the caller's own content, private included.
func (s *ContentService) GetMyContent(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}
	page, perPage := parsePagination(c)

	cacheKey := cache.KeyContentListUser(userID, page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	var rows []models.Content
	var total int64
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Model(&models.Content{}).
			Where("user_id = ?", userID).
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&rows).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch content", err)
	}
	if rows == nil {
		rows = []models.Content{}
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

// GetPublicContent lists everyone's public content, newest first.
func (s *ContentService) GetPublicContent(c *fiber.Ctx) error {
	page, perPage := parsePagination(c)

	cacheKey := cache.KeyContentListPublic(page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	var rows []models.Content
	var total int64
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Model(&models.Content{}).
			Where("is_public = ?", true).
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("is_public = ?", true).
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&rows).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch public content", err)
	}
	if rows == nil {
		rows = []models.Content{}
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

func (s *ContentService) UpdateContent(c *fiber.Ctx) error {
	id := c.Params("id")
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var content models.Content
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&content, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to fetch content", err)
	}
	if content.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you do not own this content"})
	}

	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		ContentType *string `json:"content_type"`
		IsPublic    *bool   `json:"is_public"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if input.Title != nil {
		if *input.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title cannot be empty"})
		}
		content.Title = *input.Title
		content.Slug = slug.Make(*input.Title)
	}
	if input.Description != nil {
		content.Description = *input.Description
	}
	if input.ContentType != nil {
		switch *input.ContentType {
		case models.ContentTypeNotation, models.ContentTypeMedia, models.ContentTypeLink:
			content.ContentType = *input.ContentType
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid content_type (use: notation, media, link)"})
		}
	}
	if input.IsPublic != nil {
		content.IsPublic = *input.IsPublic
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Save(&content).Error
	})
	if err != nil {
		return storageError(c, "failed to update content", err)
	}

	s.invalidateContent(c, &content)
	// The content title appears in every user's latest-played view.
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayedAll())
	return c.JSON(content)
}

// DeleteContent soft-deletes the content and hard-deletes its game
// links. Score log rows referencing the content stay untouched.
func (s *ContentService) DeleteContent(c *fiber.Ctx) error {
	id := c.Params("id")
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var content models.Content
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&content, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to fetch content", err)
	}
	if content.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you do not own this content"})
	}

	var links []models.ContentGame
	if err := s.DB.WithContext(c.Context()).Where("content_id = ?", id).Find(&links).Error; err != nil {
		return storageError(c, "failed to fetch content links", err)
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Transaction(func(inner *gorm.DB) error {
			if err := inner.Where("content_id = ?", id).Delete(&models.ContentGame{}).Error; err != nil {
				return err
			}
			return inner.Delete(&content).Error
		})
	})
	if err != nil {
		return storageError(c, "failed to delete content", err)
	}

	s.invalidateContent(c, &content)
	s.Cache.DeletePattern(c.Context(), cache.PatternContentGames(id))
	s.Cache.DeletePattern(c.Context(), cache.PatternLatestPlayedAll())
	for _, link := range links {
		s.Cache.DeletePattern(c.Context(), cache.PatternGameContent(link.GameID))
	}

	return c.JSON(fiber.Map{
		"message": "content deleted",
		"id":      id,
	})
}

// LinkGame associates the caller's content with a game so scores can
// be recorded against the pair.
func (s *ContentService) LinkGame(c *fiber.Ctx) error {
	contentID := c.Params("id")
	gameID := c.Params("game_id")
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var content models.Content
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&content, "id = ?", contentID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to fetch content", err)
	}
	if content.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you do not own this content"})
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		var game models.Game
		return tx.Select("id").First(&game, "id = ?", gameID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
		}
		return storageError(c, "failed to verify game", err)
	}

	var existing models.ContentGame
	err = s.DB.WithContext(c.Context()).
		First(&existing, "content_id = ? AND game_id = ?", contentID, gameID).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "content is already linked to this game"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storageError(c, "failed to check existing link", err)
	}

	link := models.ContentGame{
		ID:        uuid.NewString(),
		ContentID: contentID,
		GameID:    gameID,
	}
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Create(&link).Error
	})
	if err != nil {
		return storageError(c, "failed to link content to game", err)
	}

	s.Cache.DeletePattern(c.Context(), cache.PatternGameContent(gameID))
	s.Cache.DeletePattern(c.Context(), cache.PatternContentGames(contentID))
	return c.Status(fiber.StatusCreated).JSON(link)
}

// UnlinkGame removes the association. The row is hard-deleted so a
// later re-link starts a fresh play counter.
func (s *ContentService) UnlinkGame(c *fiber.Ctx) error {
	contentID := c.Params("id")
	gameID := c.Params("game_id")
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user context required"})
	}

	var content models.Content
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&content, "id = ?", contentID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to fetch content", err)
	}
	if content.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "you do not own this content"})
	}

	var link models.ContentGame
	err = s.DB.WithContext(c.Context()).
		First(&link, "content_id = ? AND game_id = ?", contentID, gameID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content is not linked to this game"})
		}
		return storageError(c, "failed to fetch link", err)
	}

	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Delete(&link).Error
	})
	if err != nil {
		return storageError(c, "failed to unlink content from game", err)
	}

	s.Cache.DeletePattern(c.Context(), cache.PatternGameContent(gameID))
	s.Cache.DeletePattern(c.Context(), cache.PatternContentGames(contentID))
	return c.JSON(fiber.Map{
		"message":    "content unlinked from game",
		"content_id": contentID,
		"game_id":    gameID,
	})
}

// GetContentGames lists the games a content row is linked to.
func (s *ContentService) GetContentGames(c *fiber.Ctx) error {
	contentID := c.Params("id")
	viewerID, _ := c.Locals("user_id").(string)
	page, perPage := parsePagination(c)

	var content models.Content
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.First(&content, "id = ?", contentID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
		}
		return storageError(c, "failed to fetch content", err)
	}
	if !content.IsPublic && content.UserID != viewerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "content not found"})
	}

	cacheKey := cache.KeyContentGames(contentID, page, perPage)
	var cached fiber.Map
	if s.Cache.GetJSON(c.Context(), cacheKey, &cached) {
		return c.JSON(cached)
	}

	linked := func(tx *gorm.DB) *gorm.DB {
		return tx.Table("content_games").
			Joins("INNER JOIN games ON games.id = content_games.game_id AND games.deleted_at IS NULL").
			Where("content_games.content_id = ?", contentID)
	}

	var games []models.Game
	var total int64
	err = s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		if err := linked(tx).Count(&total).Error; err != nil {
			return err
		}
		return linked(tx).
			Select("games.*").
			Order("games.name ASC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Scan(&games).Error
	})
	if err != nil {
		return storageError(c, "failed to fetch linked games", err)
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

func (s *ContentService) invalidateContent(c *fiber.Ctx, content *models.Content) {
	s.Cache.DeletePattern(c.Context(), cache.PatternContent(content.ID))
	s.Cache.DeletePattern(c.Context(), cache.PatternContentListUser(content.UserID))
	s.Cache.DeletePattern(c.Context(), cache.PatternContentListPublic())
}
