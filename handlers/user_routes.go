// handlers/user_routes.go
package handlers

import (
	"waste-rewards-system/middleware"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService, notificationService *services.NotificationService) {
	// Called by the Gateway right after sign-in; creates the user lazily.
	app.Post("/users/sync", userService.SyncUserEndpoint)

	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/users/me", userService.GetMeEndpoint)
	secured.Patch("/users/me/name", userService.UpdateNameEndpoint)

	// Notifications are pull-based; clients poll unread and flip read flags.
	secured.Get("/notifications", notificationService.GetUnreadEndpoint)
	secured.Patch("/notifications/:id/read", notificationService.MarkReadEndpoint)
	secured.Post("/notifications/read-all", notificationService.MarkAllReadEndpoint)
}
