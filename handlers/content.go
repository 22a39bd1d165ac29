// handlers/content.go
package handlers

import (
	"game-score-system/middleware"
	"game-score-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupContentRoutes(app *fiber.App, contentService *services.ContentService) {
	// Registered before /content/:id so "public" is not taken as an id,
	// and before the group so no user context is demanded for browsing.
	app.Get("/content/public", contentService.GetPublicContent)

	secured := app.Group("/content", middleware.UserContextMiddleware())

	secured.Get("/mine", contentService.GetMyContent)
	secured.Get("/:id", contentService.GetContentByID)
	secured.Post("/", contentService.CreateContent)
	secured.Put("/:id", contentService.UpdateContent)
	secured.Patch("/:id", contentService.UpdateContent)
	secured.Delete("/:id", contentService.DeleteContent)

	secured.Get("/:id/games", contentService.GetContentGames)
	secured.Post("/:id/games/:game_id", contentService.LinkGame)
	secured.Delete("/:id/games/:game_id", contentService.UnlinkGame)
}
