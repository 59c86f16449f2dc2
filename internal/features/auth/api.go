package auth

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuthApi struct {
	controller *AuthController
	config     *config.Config
}

func NewAuthApi(controller *AuthController, config *config.Config) api.Route {
	return &AuthApi{
		controller: controller,
		config:     config,
	}
}

func (h *AuthApi) Setup(app *fiber.App) {
	group := app.Group("/api/auth")

	group.Post("/register", h.controller.Register)
	group.Post("/login", h.controller.Login)
	group.Post("/logout", h.controller.Logout)
	group.Get("/me", middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie), h.controller.Me)
}
