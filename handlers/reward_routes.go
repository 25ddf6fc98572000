// handlers/reward_routes.go
package handlers

import (
	"waste-rewards-system/middleware"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService, ledgerService *services.LedgerService) {
	// Public leaderboard (Gateway-authed)
	app.Get("/leaderboard", ledgerService.GetLeaderboardEndpoint)

	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Ledger views
	secured.Get("/balance", ledgerService.GetBalanceEndpoint)
	secured.Get("/transactions", ledgerService.GetTransactionsEndpoint)

	// Catalog + redemption
	secured.Get("/rewards", rewardService.GetAvailableRewardsEndpoint)
	secured.Post("/rewards/:id/redeem", rewardService.RedeemRewardEndpoint)

	// Admin catalog management
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Get("/rewards", rewardService.GetAllRewardsEndpoint)
	admin.Post("/rewards", rewardService.CreateRewardEndpoint)
	admin.Put("/rewards/:id", rewardService.UpdateRewardEndpoint)
	admin.Delete("/rewards/:id", rewardService.DeleteRewardEndpoint)
}
