// handlers/admin.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lottery-draw-system/middleware"
	"lottery-draw-system/services"
)

func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService, log *zap.Logger) {
	admin := app.Group("/admin", middleware.UserContextMiddleware(log), middleware.RequireRole("admin"))

	admin.Post("/activities", adminService.CreateActivity)
	admin.Get("/activities", adminService.ListActivities)
	admin.Get("/activities/:id", adminService.GetActivity)
	admin.Put("/activities/:id", adminService.UpdateActivity)
	admin.Patch("/activities/:id/status", adminService.UpdateActivityStatus)

	admin.Post("/activities/:id/prizes", adminService.CreatePrize)
	admin.Get("/activities/:id/prizes", adminService.GetPrizes)
	admin.Put("/activities/:id/prizes/:prizeId", adminService.ReplacePrize)
	admin.Delete("/activities/:id/prizes/:prizeId", adminService.RemovePrize)
	admin.Post("/prizes/:id/image", adminService.UploadPrizeImage)
}
