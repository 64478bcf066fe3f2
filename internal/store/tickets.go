package store

import (
	"context"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// AllTickets returns every ticket in insertion order.
func (s *Store) AllTickets(ctx context.Context) []domain.Ticket {
	return readCollection[domain.Ticket](ctx, s, s.keys.Tickets)
}

// TicketByID returns the ticket with id, or nil.
func (s *Store) TicketByID(ctx context.Context, id string) *domain.Ticket {
	return findByID(s.AllTickets(ctx), id)
}

// SaveTicket inserts or replaces ticket by id.
func (s *Store) SaveTicket(ctx context.Context, ticket domain.Ticket) {
	defer s.flush()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tickets := upsert(s.AllTickets(ctx), ticket)
	writeCollection(ctx, s, s.keys.Tickets, tickets)
}

// TicketsForUser scopes the ticket list by role: customers see what they
// created, agents what is assigned to them, admins everything. Any other
// role sees nothing.
func (s *Store) TicketsForUser(ctx context.Context, userID string, role domain.Role) []domain.Ticket {
	tickets := s.AllTickets(ctx)
	switch role {
	case domain.RoleAdmin:
		return tickets
	case domain.RoleCustomer:
		return filterTickets(tickets, func(t domain.Ticket) bool { return t.CreatedBy == userID })
	case domain.RoleAgent:
		return filterTickets(tickets, func(t domain.Ticket) bool { return t.AssignedTo == userID })
	default:
		return []domain.Ticket{}
	}
}

func filterTickets(tickets []domain.Ticket, keep func(domain.Ticket) bool) []domain.Ticket {
	out := []domain.Ticket{}
	for _, t := range tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
