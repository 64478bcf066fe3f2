package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// AdminHandler exposes account management to admins.
type AdminHandler struct {
	users *service.UserService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(userService *service.UserService) *AdminHandler {
	return &AdminHandler{users: userService}
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(h.users.ListUsers(c.UserContext()))})
}

// ListAgents GET /admin/agents.
func (h *AdminHandler) ListAgents(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(h.users.ListAgents(c.UserContext()))})
}

// GetUser GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user := h.users.UserByID(c.UserContext(), c.Params("id"))
	if user == nil {
		return apperrors.NewNotFound("user", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// UpdateUser PATCH /admin/users/:id.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.UpdateUser(c.UserContext(), c.Params("id"), service.UpdateUserInput{
		Username: req.Username,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NewNotFound("user", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(*user)})
}

// DeleteUser DELETE /admin/users/:id. Admins cannot delete themselves.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if id == principal.User.ID {
		return apperrors.NewConflict("cannot delete the signed-in account", nil)
	}
	if !h.users.DeleteUser(c.UserContext(), id) {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return c.SendStatus(http.StatusNoContent)
}
