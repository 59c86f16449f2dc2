package sharing

import (
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type ShareController struct {
	ShareService ShareService
}

func NewShareController(shareService ShareService) *ShareController {
	return &ShareController{ShareService: shareService}
}

// CreateShareLink godoc
// @Summary Create share link
// @Description Requires share rights on the resource. expiresIn is one of 1h, 24h, 7d, 30d, never.
// @Tags sharing
// @Accept json
// @Produce json
// @Param link body CreateRequest true "Link"
// @Success 201 {object} ShareLinkView
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/sharing [post]
func (ctrl *ShareController) CreateShareLink(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	link, err := ctrl.ShareService.Create(c.UserContext(), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}

// ListShareLinks godoc
// @Summary List share links
// @Tags sharing
// @Produce json
// @Param resourceType query string false "dashboard or kpi"
// @Param resourceId query string false "Resource ID"
// @Success 200 {array} ShareLinkView
// @Router /api/sharing [get]
func (ctrl *ShareController) ListShareLinks(c *fiber.Ctx) error {
	var req ListRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid query parameters"})
	}

	links, err := ctrl.ShareService.List(c.UserContext(), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(links)
}

// UpdateShareLink godoc
// @Summary Update share link
// @Tags sharing
// @Accept json
// @Produce json
// @Param id path string true "Link ID"
// @Param link body UpdateRequest true "Changes"
// @Success 200 {object} ShareLinkView
// @Router /api/sharing/{id} [patch]
func (ctrl *ShareController) UpdateShareLink(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	link, err := ctrl.ShareService.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(link)
}

// DeleteShareLink godoc
// @Summary Delete share link
// @Tags sharing
// @Param id path string true "Link ID"
// @Success 204 {object} nil
// @Router /api/sharing/{id} [delete]
func (ctrl *ShareController) DeleteShareLink(c *fiber.Ctx) error {
	if err := ctrl.ShareService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetShared godoc
// @Summary Open a share link
// @Description Public. Fails with code not_found (404), expired (410) or inactive (410).
// @Tags sharing
// @Produce json
// @Param token path string true "Share token"
// @Param period query string false "1h,6h,24h,7d,30d,90d,6m,1y,all"
// @Success 200 {object} SharedResource
// @Failure 404 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Router /api/shared/{token} [get]
func (ctrl *ShareController) GetShared(c *fiber.Ctx) error {
	period, err := models.ParsePeriod(c.Query("period"))
	if err != nil {
		return apperr.Respond(c, apperr.Validation("period", "%s", err.Error()))
	}

	shared, err := ctrl.ShareService.Access(c.UserContext(), c.Params("token"), period)
	if err != nil {
		return apperr.Respond(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(shared)
}
