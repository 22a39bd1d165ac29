// handlers/score.go
package handlers

import (
	"game-score-system/middleware"
	"game-score-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupScoreRoutes(app *fiber.App, scoreService *services.ScoreLogService, boardService *services.LeaderboardService) {
	// Leaderboards are public; anyone behind the gateway can read them.
	app.Get("/games/:id/leaderboard", boardService.GetGameLeaderboard)

	// Secured routes require user context (userID, roles) via middleware.
	// The group prefix scopes the middleware to /scores only.
	secured := app.Group("/scores", middleware.UserContextMiddleware())

	secured.Post("/logs", scoreService.RecordScoreLog)
	secured.Get("/logs", scoreService.GetScoreLogs)
	secured.Get("/latest-played", boardService.GetLatestPlayed)
}
