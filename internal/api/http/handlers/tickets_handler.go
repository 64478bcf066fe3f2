package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints. Every listing is scoped by the
// caller's stored role.
type TicketsHandler struct {
	tickets *service.TicketService
	users   *service.UserService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, userService *service.UserService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, users: userService}
}

// ListTickets GET /tickets. Optional ?status= narrows the list.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets := h.tickets.TicketsForPrincipal(c.UserContext(), principal.User.ID)

	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return apperrors.NewValidationError("Invalid status", map[string]any{"status": raw})
		}
		filtered := make([]domain.Ticket, 0, len(tickets))
		for _, t := range tickets {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets, h.users.NameResolver(c.UserContext()))})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), service.CreateTicketInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		CreatedBy:   principal.User.ID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.view(c, *ticket)})
}

// GetTicket GET /tickets/:id. Tickets outside the caller's scope read as
// missing.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket := h.tickets.TicketByID(c.UserContext(), c.Params("id"))
	if ticket == nil || !service.CanView(principal.User, *ticket) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": h.view(c, *ticket)})
}

// SearchTickets GET /tickets/search?q=.
func (h *TicketsHandler) SearchTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(c.Query("q"))
	var tickets []domain.Ticket
	if principal.Role() == domain.RoleAdmin {
		tickets = h.tickets.SearchTickets(c.UserContext(), query)
	} else {
		tickets = service.FilterTickets(h.tickets.TicketsForPrincipal(c.UserContext(), principal.User.ID), query)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets, h.users.NameResolver(c.UserContext()))})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets := h.tickets.TicketsForPrincipal(c.UserContext(), principal.User.ID)
	return c.JSON(fiber.Map{"data": service.Stats(tickets)})
}

// Subjects GET /tickets/subjects.
func (h *TicketsHandler) Subjects(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": service.DefaultSubjects()})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !h.users.IsAssignableAgent(c.UserContext(), req.AgentID) {
		return apperrors.NewValidationError("Invalid agent", map[string]any{"agentId": req.AgentID})
	}

	ticket, err := h.tickets.AssignTicket(c.UserContext(), c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": h.view(c, *ticket)})
}

// UpdateStatus POST /tickets/:id/status. Agents may only move tickets
// assigned to them.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	existing := h.tickets.TicketByID(c.UserContext(), c.Params("id"))
	if existing == nil || !service.CanView(principal.User, *existing) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}

	ticket, err := h.tickets.UpdateTicketStatus(c.UserContext(), existing.ID, req.Status)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": existing.ID})
	}
	return c.JSON(fiber.Map{"data": h.view(c, *ticket)})
}

func (h *TicketsHandler) view(c *fiber.Ctx, t domain.Ticket) dto.TicketResponse {
	return dto.NewTicketResponse(t, h.users.NameResolver(c.UserContext()))
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
