package integration

import (
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

const webhookSecretHeader = "X-Webhook-Secret"

type IntegrationController struct {
	Service IntegrationService
}

func NewIntegrationController(service IntegrationService) *IntegrationController {
	return &IntegrationController{Service: service}
}

// ListIntegrations godoc
// @Summary List integrations
// @Description Owned integrations; admins see all. Credentials are masked.
// @Tags integrations
// @Produce json
// @Success 200 {array} Integration
// @Router /api/integrations [get]
func (ctrl *IntegrationController) ListIntegrations(c *fiber.Ctx) error {
	integrations, err := ctrl.Service.List(c.UserContext())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(integrations)
}

// CreateIntegration godoc
// @Summary Create integration
// @Tags integrations
// @Accept json
// @Produce json
// @Param body body CreateIntegrationRequest true "Integration"
// @Success 201 {object} Integration
// @Failure 400 {object} map[string]interface{}
// @Router /api/integrations [post]
func (ctrl *IntegrationController) CreateIntegration(c *fiber.Ctx) error {
	var req CreateIntegrationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	integration, err := ctrl.Service.Create(c.UserContext(), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(integration)
}

// GetIntegration godoc
// @Summary Get integration
// @Tags integrations
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} Integration
// @Failure 404 {object} map[string]interface{}
// @Router /api/integrations/{id} [get]
func (ctrl *IntegrationController) GetIntegration(c *fiber.Ctx) error {
	integration, err := ctrl.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(integration)
}

// UpdateIntegration godoc
// @Summary Update integration
// @Tags integrations
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param body body UpdateIntegrationRequest true "Changes"
// @Success 200 {object} Integration
// @Router /api/integrations/{id} [patch]
func (ctrl *IntegrationController) UpdateIntegration(c *fiber.Ctx) error {
	var req UpdateIntegrationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	integration, err := ctrl.Service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(integration)
}

// DeleteIntegration godoc
// @Summary Delete integration
// @Description Rejected with 409 while KPIs reference its fields
// @Tags integrations
// @Param id path string true "Integration ID"
// @Success 204
// @Failure 409 {object} map[string]interface{}
// @Router /api/integrations/{id} [delete]
func (ctrl *IntegrationController) DeleteIntegration(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TestConnection godoc
// @Summary Test integration connection
// @Tags integrations
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} TestResult
// @Failure 502 {object} map[string]interface{}
// @Router /api/integrations/{id}/test [post]
func (ctrl *IntegrationController) TestConnection(c *fiber.Ctx) error {
	result, err := ctrl.Service.TestConnection(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(result)
}

// SyncIntegration godoc
// @Summary Sync integration now
// @Tags integrations
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {object} SyncResult
// @Failure 502 {object} map[string]interface{}
// @Router /api/integrations/{id}/sync [post]
func (ctrl *IntegrationController) SyncIntegration(c *fiber.Ctx) error {
	result, err := ctrl.Service.Sync(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(result)
}

// ListFields godoc
// @Summary List data fields
// @Tags integrations
// @Produce json
// @Param id path string true "Integration ID"
// @Success 200 {array} DataField
// @Router /api/integrations/{id}/fields [get]
func (ctrl *IntegrationController) ListFields(c *fiber.Ctx) error {
	fields, err := ctrl.Service.ListFields(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fields)
}

// CreateField godoc
// @Summary Create data field
// @Tags integrations
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param body body CreateFieldRequest true "Field"
// @Success 201 {object} DataField
// @Router /api/integrations/{id}/fields [post]
func (ctrl *IntegrationController) CreateField(c *fiber.Ctx) error {
	var req CreateFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	field, err := ctrl.Service.CreateField(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(field)
}

// DeleteField godoc
// @Summary Delete data field
// @Tags integrations
// @Param id path string true "Integration ID"
// @Param fieldId path string true "Field ID"
// @Success 204
// @Failure 409 {object} map[string]interface{}
// @Router /api/integrations/{id}/fields/{fieldId} [delete]
func (ctrl *IntegrationController) DeleteField(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteField(c.UserContext(), c.Params("id"), c.Params("fieldId")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type AddValuesRequest struct {
	Values []ValueInput `json:"values"`
}

// AddValues godoc
// @Summary Record manual values
// @Tags integrations
// @Accept json
// @Produce json
// @Param id path string true "Integration ID"
// @Param fieldId path string true "Field ID"
// @Param body body AddValuesRequest true "Values"
// @Success 201 {object} map[string]interface{}
// @Router /api/integrations/{id}/fields/{fieldId}/values [post]
func (ctrl *IntegrationController) AddValues(c *fiber.Ctx) error {
	var req AddValuesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	count, err := ctrl.Service.AddValues(c.UserContext(), c.Params("id"), c.Params("fieldId"), req.Values)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"recorded": count})
}

// FieldValues godoc
// @Summary Field history
// @Tags integrations
// @Produce json
// @Param id path string true "Integration ID"
// @Param fieldId path string true "Field ID"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {object} map[string]interface{}
// @Router /api/integrations/{id}/fields/{fieldId}/values [get]
func (ctrl *IntegrationController) FieldValues(c *fiber.Ctx) error {
	period, err := models.ParsePeriod(c.Query("period"))
	if err != nil {
		return apperr.Respond(c, apperr.Validation("period", "%s", err.Error()))
	}

	values, err := ctrl.Service.FieldValues(c.UserContext(), c.Params("id"), c.Params("fieldId"), period)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"data": values, "period": period, "interval": period.Interval()})
}

// ImportValues godoc
// @Summary Import values from CSV or XLSX
// @Description Columns field, value and optional timestamp; rows are written in chunks of 50
// @Tags integrations
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Integration ID"
// @Param file formData file true "Import file"
// @Success 200 {object} ImportResult
// @Router /api/integrations/{id}/import [post]
func (ctrl *IntegrationController) ImportValues(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer file.Close()

	result, err := ctrl.Service.Import(c.UserContext(), c.Params("id"), fileHeader.Filename, file)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(result)
}

// ReceiveWebhook godoc
// @Summary Push values into a webhook integration
// @Tags webhooks
// @Accept json
// @Produce json
// @Param integrationId path string true "Integration ID"
// @Param X-Webhook-Secret header string true "Webhook secret"
// @Param body body WebhookPayload true "Values keyed by source field"
// @Success 202 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/webhooks/{integrationId} [post]
func (ctrl *IntegrationController) ReceiveWebhook(c *fiber.Ctx) error {
	var payload WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	count, err := ctrl.Service.IngestWebhook(c.UserContext(), c.Params("integrationId"), c.Get(webhookSecretHeader), payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"recorded": count})
}
