package services

import (
	"time"

	"game-score-system/db"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DatabaseService reports on the autoscaling Postgres backend and lets
// operators wake it ahead of traffic.
type DatabaseService struct {
	DB      *gorm.DB
	Retrier *db.Retrier
}

func NewDatabaseService(gdb *gorm.DB, retrier *db.Retrier) *DatabaseService {
	return &DatabaseService{DB: gdb, Retrier: retrier}
}

// GetStatus pings through the retrier, so a cold database gets its
// wake probe and a few seconds to come back before we call it down.
func (s *DatabaseService) GetStatus(c *fiber.Ctx) error {
	start := time.Now()
	err := s.Retrier.Run(c.Context(), func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"message": "database did not respond; it may be scaling up from idle, retry shortly",
		})
	}
	latency := time.Since(start)

	response := fiber.Map{
		"status":     "available",
		"latency_ms": latency.Milliseconds(),
	}

	if sqlDB, err := s.DB.DB(); err == nil {
		stats := sqlDB.Stats()
		response["pool"] = fiber.Map{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		}
	}
	if lastWake := s.Retrier.LastWake(); !lastWake.IsZero() {
		response["last_wake_at"] = lastWake.UTC().Format(time.RFC3339)
	}
	return c.JSON(response)
}

// GetHealth is the liveness probe: one ping, no retry, no wake.
func (s *DatabaseService) GetHealth(c *fiber.Ctx) error {
	if err := s.DB.WithContext(c.Context()).Exec("SELECT 1").Error; err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

// WakeDatabase runs the wake probe on demand, ahead of expected load.
func (s *DatabaseService) WakeDatabase(c *fiber.Ctx) error {
	elapsed, err := s.Retrier.Wake(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unreachable",
			"message": "wake probe failed: " + err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":     "awake",
		"latency_ms": elapsed.Milliseconds(),
		"message":    "database is responding",
	})
}
