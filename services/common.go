package services

import (
	"log"
	"strconv"

	"game-score-system/db"

	"github.com/gofiber/fiber/v2"
)

// storageError maps a database failure to an HTTP response. Transient
// failures surface as 503 so clients know a retry can succeed.
func storageError(c *fiber.Ctx, msg string, err error) error {
	log.Printf("ERROR %s: %v", msg, err)
	if db.IsTransient(err) {
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "service temporarily unavailable, please retry"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

// parsePagination reads ?page and ?per_page with clamping. Pages are
// 1-based; per_page is capped at 100 and falls back to 20 on junk.
func parsePagination(c *fiber.Ctx) (page, perPage int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = strconv.Atoi(c.Query("per_page", "20"))
	if err != nil || perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func totalPages(total int64, perPage int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
