package dto

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agentId"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// TicketResponse is a ticket with its people resolved to display names.
type TicketResponse struct {
	ID           string                `json:"id"`
	Subject      string                `json:"subject"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedBy    string                `json:"createdBy"`
	AssignedTo   string                `json:"assignedTo,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	CustomerName string                `json:"customerName"`
	AgentName    string                `json:"agentName,omitempty"`
}

// NewTicketResponse builds the view; name resolves user ids.
func NewTicketResponse(t domain.Ticket, name func(id string) string) TicketResponse {
	resp := TicketResponse{
		ID:           t.ID,
		Subject:      t.Subject,
		Description:  t.Description,
		Priority:     t.Priority,
		Status:       t.Status,
		CreatedBy:    t.CreatedBy,
		AssignedTo:   t.AssignedTo,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CustomerName: name(t.CreatedBy),
	}
	if t.IsAssigned() {
		resp.AgentName = name(t.AssignedTo)
	}
	return resp
}

// NewTicketResponses maps a ticket list.
func NewTicketResponses(tickets []domain.Ticket, name func(id string) string) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t, name))
	}
	return out
}
