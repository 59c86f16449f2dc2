package user

import (
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	UserService UserService
}

func NewUserController(userService UserService) *UserController {
	return &UserController{UserService: userService}
}

type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// SearchUsers godoc
// @Summary Search users
// @Description Search users by name or email, used when granting access
// @Tags users
// @Produce json
// @Param search query string false "Search term"
// @Success 200 {array} models.UserSummary
// @Router /api/users [get]
func (ctrl *UserController) SearchUsers(c *fiber.Ctx) error {
	users, err := ctrl.UserService.SearchUsers(c.UserContext(), c.Query("search"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(users)
}

// UpdateRole godoc
// @Summary Change a user's global role
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body UpdateRoleRequest true "Role"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/users/{id}/role [patch]
func (ctrl *UserController) UpdateRole(c *fiber.Ctx) error {
	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.UserService.UpdateRole(c.UserContext(), c.Params("id"), req.Role); err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{"message": "Role updated successfully"})
}
