package kpi

import (
	"fmt"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type KpiController struct {
	Service KpiService
}

func NewKpiController(service KpiService) *KpiController {
	return &KpiController{Service: service}
}

// ListKpis godoc
// @Summary List KPIs
// @Description Owned and shared KPIs with derived progress and access flags
// @Tags kpis
// @Produce json
// @Success 200 {array} KpiView
// @Router /api/kpis [get]
func (ctrl *KpiController) ListKpis(c *fiber.Ctx) error {
	kpis, err := ctrl.Service.List(c.UserContext())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(kpis)
}

// CreateKpi godoc
// @Summary Create KPI
// @Tags kpis
// @Accept json
// @Produce json
// @Param body body KpiRequest true "KPI definition"
// @Success 201 {object} KpiView
// @Failure 400 {object} map[string]interface{}
// @Router /api/kpis [post]
func (ctrl *KpiController) CreateKpi(c *fiber.Ctx) error {
	var req KpiRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	kpi, err := ctrl.Service.Create(c.UserContext(), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(kpi)
}

// GetKpi godoc
// @Summary Get KPI
// @Tags kpis
// @Produce json
// @Param id path string true "KPI ID"
// @Success 200 {object} KpiView
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/kpis/{id} [get]
func (ctrl *KpiController) GetKpi(c *fiber.Ctx) error {
	kpi, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(kpi)
}

// UpdateKpi godoc
// @Summary Update KPI
// @Description Partial update. Set clearTarget to remove the target.
// @Tags kpis
// @Accept json
// @Produce json
// @Param id path string true "KPI ID"
// @Param body body KpiRequest true "Changes"
// @Success 200 {object} KpiView
// @Router /api/kpis/{id} [patch]
func (ctrl *KpiController) UpdateKpi(c *fiber.Ctx) error {
	var req KpiRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	kpi, err := ctrl.Service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(kpi)
}

// DeleteKpi godoc
// @Summary Delete KPI
// @Tags kpis
// @Param id path string true "KPI ID"
// @Success 204
// @Router /api/kpis/{id} [delete]
func (ctrl *KpiController) DeleteKpi(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateFormula godoc
// @Summary Validate a formula against its sources
// @Tags kpis
// @Accept json
// @Produce json
// @Param body body ValidateFormulaRequest true "Formula and sources"
// @Success 200 {object} FormulaValidation
// @Router /api/kpis/validate-formula [post]
func (ctrl *KpiController) ValidateFormula(c *fiber.Ctx) error {
	var req ValidateFormulaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := ctrl.Service.ValidateFormula(c.UserContext(), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(result)
}

// RecalculateKpi godoc
// @Summary Recalculate KPI now
// @Tags kpis
// @Produce json
// @Param id path string true "KPI ID"
// @Success 200 {object} KpiView
// @Router /api/kpis/{id}/recalculate [post]
func (ctrl *KpiController) RecalculateKpi(c *fiber.Ctx) error {
	kpi, err := ctrl.Service.Recalculate(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(kpi)
}

// KpiHistory godoc
// @Summary KPI history
// @Tags kpis
// @Produce json
// @Param id path string true "KPI ID"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {object} History
// @Router /api/kpis/{id}/history [get]
func (ctrl *KpiController) KpiHistory(c *fiber.Ctx) error {
	period, err := models.ParsePeriod(c.Query("period"))
	if err != nil {
		return apperr.Respond(c, apperr.Validation("period", "%s", err.Error()))
	}

	history, err := ctrl.Service.History(c.UserContext(), c.Params("id"), period)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(history)
}

// ExportKpi godoc
// @Summary Export KPI history as xlsx
// @Tags kpis
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "KPI ID"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {file} file
// @Router /api/kpis/{id}/export [get]
func (ctrl *KpiController) ExportKpi(c *fiber.Ctx) error {
	period, err := models.ParsePeriod(c.Query("period"))
	if err != nil {
		return apperr.Respond(c, apperr.Validation("period", "%s", err.Error()))
	}

	filename, data, err := ctrl.Service.Export(c.UserContext(), c.Params("id"), period)
	if err != nil {
		return apperr.Respond(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}
