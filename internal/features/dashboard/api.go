package dashboard

import (
	"go-kpi/internal/common/api"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/access"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DashboardApi struct {
	DashboardController *DashboardController
	DashboardService    DashboardService
	AccessService       access.AccessService
	Config              *config.Config
}

func NewDashboardApi(dashboardController *DashboardController, dashboardService DashboardService, accessService access.AccessService, cfg *config.Config) api.Route {
	return &DashboardApi{
		DashboardController: dashboardController,
		DashboardService:    dashboardService,
		AccessService:       accessService,
		Config:              cfg,
	}
}

func (api *DashboardApi) Setup(app *fiber.App) {
	group := app.Group("/api/dashboards", middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.SessionCookie))

	group.Post("/", middleware.RequireRole(models.RoleEditor), api.DashboardController.CreateDashboard)
	group.Get("/", api.DashboardController.ListDashboards)
	group.Get("/:id", api.DashboardController.GetDashboard)
	group.Patch("/:id", api.DashboardController.UpdateDashboard)
	group.Delete("/:id", api.DashboardController.DeleteDashboard)

	group.Post("/:id/widgets", api.DashboardController.AddWidget)
	group.Patch("/:id/widgets/:widgetId", api.DashboardController.UpdateWidget)
	group.Delete("/:id/widgets/:widgetId", api.DashboardController.DeleteWidget)
	group.Patch("/:id/layout", api.DashboardController.UpdateLayout)

	group.Get("/:id/data", api.DashboardController.GetDashboardData)
	group.Get("/:id/kpis/:kpiId/history", api.DashboardController.GetKpiHistory)

	access.NewResourceHandlers(api.AccessService, api.DashboardService.Resource).Mount(group)
}
