// handlers/collection.go
package handlers

import (
	"waste-rewards-system/middleware"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCollectionRoutes(app *fiber.App, collectionService *services.CollectionService) {
	// Task listing is public (Gateway-authed); all transitions need a user.
	app.Get("/tasks", collectionService.GetTasksEndpoint)

	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/tasks/:id/claim", collectionService.ClaimTaskEndpoint)
	secured.Post("/tasks/:id/verify", collectionService.VerifyTaskEndpoint)
	secured.Post("/tasks/:id/complete", collectionService.CompleteTaskEndpoint)
}
