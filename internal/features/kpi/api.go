package kpi

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/access"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type KpiApi struct {
	controller    *KpiController
	service       KpiService
	accessService access.AccessService
	config        *config.Config
}

func NewKpiApi(controller *KpiController, service KpiService, accessService access.AccessService, config *config.Config) api.Route {
	return &KpiApi{
		controller:    controller,
		service:       service,
		accessService: accessService,
		config:        config,
	}
}

func (h *KpiApi) Setup(app *fiber.App) {
	kpis := app.Group("/api/kpis", middleware.AuthMiddleware(h.config.SkipAuth, h.config.SessionCookie))

	editor := middleware.RequireRole(models.RoleEditor)

	kpis.Get("/", h.controller.ListKpis)
	kpis.Post("/", editor, h.controller.CreateKpi)
	kpis.Post("/validate-formula", h.controller.ValidateFormula)
	kpis.Get("/:id", h.controller.GetKpi)
	kpis.Patch("/:id", h.controller.UpdateKpi)
	kpis.Delete("/:id", h.controller.DeleteKpi)

	kpis.Post("/:id/recalculate", h.controller.RecalculateKpi)
	kpis.Get("/:id/history", h.controller.KpiHistory)
	kpis.Get("/:id/export", h.controller.ExportKpi)

	access.NewResourceHandlers(h.accessService, h.service.Resource).Mount(kpis)
}
