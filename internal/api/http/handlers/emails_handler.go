package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// EmailsHandler serves the caller's in-app mailbox.
type EmailsHandler struct {
	emails *service.EmailService
	users  *service.UserService
}

// NewEmailsHandler constructs handler.
func NewEmailsHandler(emailService *service.EmailService, userService *service.UserService) *EmailsHandler {
	return &EmailsHandler{emails: emailService, users: userService}
}

// ListEmails GET /emails, newest first.
func (h *EmailsHandler) ListEmails(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	emails := h.emails.EmailsForUser(c.UserContext(), principal.User.ID)
	return c.JSON(fiber.Map{"data": dto.NewEmailResponses(emails, h.users.NameResolver(c.UserContext()))})
}

// UnreadCount GET /emails/unread-count.
func (h *EmailsHandler) UnreadCount(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": h.emails.UnreadCount(c.UserContext(), principal.User.ID)}})
}

// MarkRead POST /emails/:id/read. Only the recipient may mark an email.
func (h *EmailsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	email := h.emails.EmailByID(c.UserContext(), id)
	if email == nil || email.ToUserID != principal.User.ID {
		return apperrors.NewNotFound("email", map[string]any{"id": id})
	}
	h.emails.MarkAsRead(c.UserContext(), id)
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id, "isRead": true}})
}
