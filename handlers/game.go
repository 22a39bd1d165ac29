// handlers/game.go
package handlers

import (
	"game-score-system/middleware"
	"game-score-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	// Public routes, no user context but still behind gateway auth.
	// Registered before the group so its middleware cannot shadow them.
	app.Get("/games", gameService.GetAllGames)
	app.Get("/games/:id", gameService.GetGameByID)
	app.Get("/games/:id/content", gameService.GetGameContent)

	secured := app.Group("/games", middleware.UserContextMiddleware())

	secured.Post("/", gameService.CreateGame)
	secured.Put("/:id", gameService.UpdateGame)
	secured.Patch("/:id", gameService.UpdateGame)
	secured.Delete("/:id", gameService.DeleteGame)
	secured.Patch("/:id/restore", gameService.RestoreGame)
}
