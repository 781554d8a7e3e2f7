// handlers/lottery.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lottery-draw-system/middleware"
	"lottery-draw-system/services"
)

func SetupLotteryRoutes(app *fiber.App, lotteryService *services.LotteryService, adminService *services.AdminService, log *zap.Logger) {
	// Secured routes: user identity comes from the gateway headers.
	lottery := app.Group("/lottery", middleware.UserContextMiddleware(log))

	lottery.Get("/activities", adminService.GetDrawableActivities)
	lottery.Post("/draw", lotteryService.Draw)
	lottery.Get("/draw-count/:activityId", lotteryService.DrawCountEndpoint)
}
