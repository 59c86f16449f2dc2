package integration

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type IntegrationApi struct {
	controller *IntegrationController
	config     *config.Config
}

func NewIntegrationApi(controller *IntegrationController, config *config.Config) api.Route {
	return &IntegrationApi{
		controller: controller,
		config:     config,
	}
}

func (h *IntegrationApi) Setup(app *fiber.App) {
	// Secret-gated, no session
	app.Post("/api/webhooks/:integrationId", h.controller.ReceiveWebhook)

	integrations := app.Group("/api/integrations",
		middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie),
		middleware.RequireRole(models.RoleEditor),
	)

	integrations.Get("/", h.controller.ListIntegrations)
	integrations.Post("/", h.controller.CreateIntegration)
	integrations.Get("/:id", h.controller.GetIntegration)
	integrations.Patch("/:id", h.controller.UpdateIntegration)
	integrations.Delete("/:id", h.controller.DeleteIntegration)

	integrations.Post("/:id/test", h.controller.TestConnection)
	integrations.Post("/:id/sync", h.controller.SyncIntegration)
	integrations.Post("/:id/import", h.controller.ImportValues)

	integrations.Get("/:id/fields", h.controller.ListFields)
	integrations.Post("/:id/fields", h.controller.CreateField)
	integrations.Delete("/:id/fields/:fieldId", h.controller.DeleteField)
	integrations.Get("/:id/fields/:fieldId/values", h.controller.FieldValues)
	integrations.Post("/:id/fields/:fieldId/values", h.controller.AddValues)
}
