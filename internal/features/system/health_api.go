package system

import (
	"go-kpi/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	controller *HealthController
}

func NewHealthApi(controller *HealthController) api.Route {
	return &HealthApi{controller: controller}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/api/health", h.controller.Health)
}
