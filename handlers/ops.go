// handlers/ops.go
package handlers

import (
	"game-score-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupOpsRoutes wires the operational endpoints. No user context:
// these are for operators and orchestration probes, behind gateway
// auth like everything else.
func SetupOpsRoutes(app *fiber.App, cacheService *services.CacheService, dbService *services.DatabaseService) {
	app.Get("/cache/stats", cacheService.GetStats)
	app.Post("/cache/clear", cacheService.ClearCache)
	app.Get("/cache/health", cacheService.GetHealth)

	app.Get("/database/status", dbService.GetStatus)
	app.Get("/database/health", dbService.GetHealth)
	app.Post("/database/wake", dbService.WakeDatabase)
}
