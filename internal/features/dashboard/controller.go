package dashboard

import (
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/widget"

	"github.com/gofiber/fiber/v2"
)

type DashboardController struct {
	DashboardService DashboardService
}

func NewDashboardController(dashboardService DashboardService) *DashboardController {
	return &DashboardController{
		DashboardService: dashboardService,
	}
}

// CreateDashboard godoc
// @Summary Create dashboard
// @Tags dashboard
// @Accept json
// @Produce json
// @Param dashboard body DashboardRequest true "Dashboard"
// @Success 201 {object} DashboardView
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/dashboards [post]
func (ctrl *DashboardController) CreateDashboard(ctx *fiber.Ctx) error {
	var req DashboardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	dashboard, err := ctrl.DashboardService.CreateDashboard(ctx.UserContext(), req)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(dashboard)
}

// ListDashboards godoc
// @Summary List dashboards
// @Description Dashboards the current user owns or was granted, with access flags
// @Tags dashboard
// @Produce json
// @Success 200 {array} DashboardView
// @Failure 401 {object} map[string]interface{}
// @Router /api/dashboards [get]
func (ctrl *DashboardController) ListDashboards(ctx *fiber.Ctx) error {
	dashboards, err := ctrl.DashboardService.ListDashboards(ctx.UserContext())
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(dashboards)
}

// GetDashboard godoc
// @Summary Get dashboard
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} DashboardView
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id} [get]
func (ctrl *DashboardController) GetDashboard(ctx *fiber.Ctx) error {
	dashboard, err := ctrl.DashboardService.GetDashboard(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(dashboard)
}

// UpdateDashboard godoc
// @Summary Update dashboard
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param dashboard body DashboardRequest true "Changes"
// @Success 200 {object} DashboardView
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/dashboards/{id} [patch]
func (ctrl *DashboardController) UpdateDashboard(ctx *fiber.Ctx) error {
	var req DashboardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	dashboard, err := ctrl.DashboardService.UpdateDashboard(ctx.UserContext(), ctx.Params("id"), req)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(dashboard)
}

// DeleteDashboard godoc
// @Summary Delete dashboard
// @Tags dashboard
// @Param id path string true "Dashboard ID"
// @Success 204 {object} nil
// @Failure 403 {object} map[string]interface{}
// @Router /api/dashboards/{id} [delete]
func (ctrl *DashboardController) DeleteDashboard(ctx *fiber.Ctx) error {
	if err := ctrl.DashboardService.DeleteDashboard(ctx.UserContext(), ctx.Params("id")); err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// AddWidget godoc
// @Summary Add widget
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param widget body widget.WidgetRequest true "Widget"
// @Success 201 {object} widget.Widget
// @Failure 400 {object} map[string]interface{}
// @Router /api/dashboards/{id}/widgets [post]
func (ctrl *DashboardController) AddWidget(ctx *fiber.Ctx) error {
	var req widget.WidgetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	w, err := ctrl.DashboardService.AddWidget(ctx.UserContext(), ctx.Params("id"), req)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(w)
}

// UpdateWidget godoc
// @Summary Update widget
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param widgetId path string true "Widget ID"
// @Param widget body widget.WidgetRequest true "Changes"
// @Success 200 {object} widget.Widget
// @Router /api/dashboards/{id}/widgets/{widgetId} [patch]
func (ctrl *DashboardController) UpdateWidget(ctx *fiber.Ctx) error {
	var req widget.WidgetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	w, err := ctrl.DashboardService.UpdateWidget(ctx.UserContext(), ctx.Params("id"), ctx.Params("widgetId"), req)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(w)
}

// DeleteWidget godoc
// @Summary Delete widget
// @Tags dashboard
// @Param id path string true "Dashboard ID"
// @Param widgetId path string true "Widget ID"
// @Success 204 {object} nil
// @Router /api/dashboards/{id}/widgets/{widgetId} [delete]
func (ctrl *DashboardController) DeleteWidget(ctx *fiber.Ctx) error {
	if err := ctrl.DashboardService.DeleteWidget(ctx.UserContext(), ctx.Params("id"), ctx.Params("widgetId")); err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// UpdateLayout godoc
// @Summary Save widget positions
// @Description Applies positions to the listed widgets only; unlisted widgets are untouched
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param layout body LayoutRequest true "Positions"
// @Success 200 {object} DashboardView
// @Router /api/dashboards/{id}/layout [patch]
func (ctrl *DashboardController) UpdateLayout(ctx *fiber.Ctx) error {
	var req LayoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	dashboard, err := ctrl.DashboardService.UpdateLayout(ctx.UserContext(), ctx.Params("id"), req.Layout)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(dashboard)
}

// GetDashboardData godoc
// @Summary Get dashboard data
// @Description KPI data and rendered view per widget. Widget failures are reported per widget.
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {object} DashboardData
// @Router /api/dashboards/{id}/data [get]
func (ctrl *DashboardController) GetDashboardData(ctx *fiber.Ctx) error {
	period, err := models.ParsePeriod(ctx.Query("period"))
	if err != nil {
		return apperr.Respond(ctx, apperr.Validation("period", "%s", err.Error()))
	}

	data, err := ctrl.DashboardService.GetDashboardData(ctx.UserContext(), ctx.Params("id"), period)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(data)
}

// GetKpiHistory godoc
// @Summary KPI history through a dashboard
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param kpiId path string true "KPI ID"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {object} kpi.History
// @Router /api/dashboards/{id}/kpis/{kpiId}/history [get]
func (ctrl *DashboardController) GetKpiHistory(ctx *fiber.Ctx) error {
	period, err := models.ParsePeriod(ctx.Query("period"))
	if err != nil {
		return apperr.Respond(ctx, apperr.Validation("period", "%s", err.Error()))
	}

	history, err := ctrl.DashboardService.KpiHistory(ctx.UserContext(), ctx.Params("id"), ctx.Params("kpiId"), period)
	if err != nil {
		return apperr.Respond(ctx, err)
	}
	return ctx.JSON(history)
}
