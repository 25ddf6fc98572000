// handlers/report.go
package handlers

import (
	"waste-rewards-system/middleware"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReportRoutes(app *fiber.App, reportService *services.ReportService) {
	// Public routes (still behind Gateway auth, no user context needed)
	app.Get("/reports", reportService.GetRecentReportsEndpoint)
	app.Get("/reports/pending", reportService.GetPendingReportsEndpoint)
	app.Get("/impact", reportService.GetImpactEndpoint)

	// Secured routes — require user context from the Gateway
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/reports", reportService.CreateReportEndpoint)
	secured.Get("/reports/mine", reportService.GetMyReportsEndpoint)
}
