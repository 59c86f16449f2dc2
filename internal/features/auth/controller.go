package auth

import (
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/config"
	"go-kpi/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	AuthService AuthService
	Config      *config.Config
}

func NewAuthController(authService AuthService, cfg *config.Config) *AuthController {
	return &AuthController{
		AuthService: authService,
		Config:      cfg,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterRequest true "Register Input"
// @Success      201  {object} models.User
// @Failure      400  {object} map[string]interface{}
// @Failure      409  {object} map[string]interface{}
// @Router       /api/auth/register [post]
func (ctrl *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	usr, err := ctrl.AuthService.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(usr)
}

// Login godoc
// @Summary      Login
// @Description  Login with email and password; the session is returned as an HttpOnly cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginRequest true "Login Input"
// @Success      200  {object} Session
// @Failure      401  {object} map[string]interface{}
// @Router       /api/auth/login [post]
func (ctrl *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := ctrl.AuthService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return apperr.Respond(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     ctrl.Config.SessionCookie,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   ctrl.Config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})

	return c.JSON(session)
}

// Logout godoc
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /api/auth/logout [post]
func (ctrl *AuthController) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     ctrl.Config.SessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Path:     "/",
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object} models.User
// @Failure      401  {object} map[string]interface{}
// @Router       /api/auth/me [get]
func (ctrl *AuthController) Me(c *fiber.Ctx) error {
	usr, err := ctrl.AuthService.Me(c.UserContext(), middleware.Claims(c).UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(usr)
}
