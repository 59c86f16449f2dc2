package sharing

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ShareApi struct {
	controller *ShareController
	config     *config.Config
}

func NewShareApi(controller *ShareController, cfg *config.Config) api.Route {
	return &ShareApi{controller: controller, config: cfg}
}

func (h *ShareApi) Setup(app *fiber.App) {
	links := app.Group("/api/sharing", middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie))
	links.Post("/", h.controller.CreateShareLink)
	links.Get("/", h.controller.ListShareLinks)
	links.Patch("/:id", h.controller.UpdateShareLink)
	links.Delete("/:id", h.controller.DeleteShareLink)

	// Public, no session
	app.Get("/api/shared/:token", h.controller.GetShared)
}
