package user

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type UserApi struct {
	controller *UserController
	config     *config.Config
}

func NewUserApi(controller *UserController, config *config.Config) api.Route {
	return &UserApi{
		controller: controller,
		config:     config,
	}
}

func (h *UserApi) Setup(app *fiber.App) {
	users := app.Group("/api/users", middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie))

	users.Get("/", h.controller.SearchUsers)
	users.Patch("/:id/role", middleware.RequireRole(models.RoleAdmin), h.controller.UpdateRole)
}
