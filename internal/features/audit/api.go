package audit

import (
	"go-kpi/internal/common/api"
	common_models "go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
}

func NewAuditApi(controller *AuditController, config *config.Config) api.Route {
	return &AuditApi{
		controller: controller,
		config:     config,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit", middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie))

	audit.Get("/", middleware.RequireRole(common_models.RoleAdmin), h.controller.ListLogs)
}
