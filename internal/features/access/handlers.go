package access

import (
	"context"

	"go-kpi/internal/common/apperr"

	"github.com/gofiber/fiber/v2"
)

// ResourceLoader resolves a route id into ownership information
type ResourceLoader func(ctx context.Context, id string) (Resource, error)

// ResourceHandlers serves the access endpoints of one resource type.
// Listing needs view access, every mutation needs manage access.
type ResourceHandlers struct {
	Service AccessService
	Load    ResourceLoader
}

func NewResourceHandlers(service AccessService, load ResourceLoader) *ResourceHandlers {
	return &ResourceHandlers{Service: service, Load: load}
}

// Mount registers GET/POST /:id/access and PATCH/DELETE /:id/access/:userId on router
func (h *ResourceHandlers) Mount(router fiber.Router) {
	router.Get("/:id/access", h.List)
	router.Post("/:id/access", h.Grant)
	router.Patch("/:id/access/:userId", h.Update)
	router.Delete("/:id/access/:userId", h.Revoke)
}

func (h *ResourceHandlers) resolve(c *fiber.Ctx, need Need) (Resource, error) {
	ctx := c.UserContext()
	res, err := h.Load(ctx, c.Params("id"))
	if err != nil {
		return res, err
	}
	_, err = h.Service.Authorize(ctx, res, RequesterFromContext(ctx), need)
	return res, err
}

// List godoc
// @Summary List access grants
// @Description Returns the owner and the users granted VIEW or EDIT on the resource
// @Tags access
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} AccessList
// @Router /api/dashboards/{id}/access [get]
// @Router /api/kpis/{id}/access [get]
func (h *ResourceHandlers) List(c *fiber.Ctx) error {
	res, err := h.resolve(c, NeedView)
	if err != nil {
		return apperr.Respond(c, err)
	}

	list, err := h.Service.List(c.UserContext(), res)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(list)
}

// Grant godoc
// @Summary Grant access
// @Tags access
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param body body GrantRequest true "Grant"
// @Success 201 {object} AccessListItem
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/dashboards/{id}/access [post]
// @Router /api/kpis/{id}/access [post]
func (h *ResourceHandlers) Grant(c *fiber.Ctx) error {
	var req GrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.resolve(c, NeedManage)
	if err != nil {
		return apperr.Respond(c, err)
	}

	item, err := h.Service.Grant(c.UserContext(), res, req)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// Update godoc
// @Summary Change a user's permission
// @Tags access
// @Accept json
// @Param id path string true "Resource ID"
// @Param userId path string true "User ID"
// @Param body body UpdateRequest true "Permission"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/access/{userId} [patch]
// @Router /api/kpis/{id}/access/{userId} [patch]
func (h *ResourceHandlers) Update(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.resolve(c, NeedManage)
	if err != nil {
		return apperr.Respond(c, err)
	}

	if err := h.Service.Update(c.UserContext(), res, c.Params("userId"), req.Permission); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Access updated successfully"})
}

// Revoke godoc
// @Summary Revoke access
// @Tags access
// @Param id path string true "Resource ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /api/dashboards/{id}/access/{userId} [delete]
// @Router /api/kpis/{id}/access/{userId} [delete]
func (h *ResourceHandlers) Revoke(c *fiber.Ctx) error {
	res, err := h.resolve(c, NeedManage)
	if err != nil {
		return apperr.Respond(c, err)
	}

	if err := h.Service.Revoke(c.UserContext(), res, c.Params("userId")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
