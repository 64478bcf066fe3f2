package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/store"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

const ticketIDPrefix = "TCKT-"

var defaultSubjects = []string{
	"Login Issue",
	"Password Reset",
	"Account Access",
	"Technical Problem",
	"Feature Request",
	"Bug Report",
	"General Inquiry",
	"Other",
}

// DefaultSubjects lists the subjects offered on the new-ticket form.
func DefaultSubjects() []string {
	return append([]string(nil), defaultSubjects...)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      *store.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	cfg        config.TicketConfig
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store      *store.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
	Config     config.TicketConfig
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Subject     string
	Description string
	Priority    string
	CreatedBy   string
}

// TicketStats summarizes a ticket list. Active counts assigned and
// in-progress tickets.
type TicketStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
		cfg:        deps.Config,
	}
}

// GenerateTicketID returns TCKT-<YYYYMMDD>-<NNNN> for today in UTC, where
// NNNN is one more than the number of stored ids containing today's date.
func (s *TicketService) GenerateTicketID(ctx context.Context) string {
	return nextTicketID(s.clock.Now(), s.store.AllTickets(ctx))
}

func nextTicketID(now time.Time, tickets []domain.Ticket) string {
	dateStr := now.UTC().Format("20060102")
	count := 0
	for _, t := range tickets {
		if strings.Contains(t.ID, dateStr) {
			count++
		}
	}
	return fmt.Sprintf("%s%s-%04d", ticketIDPrefix, dateStr, count+1)
}

// CreateTicket stores a pending ticket and announces it. The id is computed
// and saved under the store's ticket lock.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)

	var problems []string
	if subject == "" {
		problems = append(problems, "Subject is required")
	}
	if description == "" {
		problems = append(problems, "Description is required")
	}
	if input.CreatedBy == "" {
		problems = append(problems, "Creator is required")
	}
	priority := domain.TicketPriorityMedium
	if input.Priority != "" {
		p, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			problems = append(problems, "Invalid priority")
		}
		priority = p
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationErrors(problems)
	}

	var ticket domain.Ticket
	s.store.WithTicketLock(func() {
		now := s.clock.Now().UTC()
		ticket = domain.Ticket{
			ID:          nextTicketID(now, s.store.AllTickets(ctx)),
			Subject:     subject,
			Description: description,
			Priority:    priority,
			Status:      domain.TicketStatusPending,
			CreatedBy:   input.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.store.SaveTicket(ctx, ticket)
	})

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("created_by", ticket.CreatedBy))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketCreated,
		Ticket:  ticket,
		ActorID: input.CreatedBy,
	})
	return &ticket, nil
}

// AssignTicket hands the ticket to agentID and moves it to assigned. An
// unknown ticket yields nil and no error.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, agentID string) (*domain.Ticket, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, apperrors.NewValidationError("Agent is required", nil)
	}
	ticket := s.store.TicketByID(ctx, ticketID)
	if ticket == nil {
		return nil, nil
	}
	if ticket.Status == domain.TicketStatusResolved && !s.cfg.AllowReassignResolved {
		return nil, apperrors.NewConflict("ticket is already resolved", map[string]any{"ticket_id": ticketID})
	}

	oldAssignee := ticket.AssignedTo
	ticket.AssignedTo = agentID
	ticket.Status = domain.TicketStatusAssigned
	ticket.UpdatedAt = s.clock.Now().UTC()
	s.store.SaveTicket(ctx, *ticket)

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketAssigned,
		Ticket:  *ticket,
		ActorID: agentID,
		Payload: events.TicketAssignedPayload{OldAssignee: oldAssignee, NewAssignee: agentID},
	})
	return ticket, nil
}

// UpdateTicketStatus moves the ticket to status. Unknown statuses are
// rejected; an unknown ticket yields nil and no error.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, ticketID, status string) (*domain.Ticket, error) {
	newStatus, ok := domain.ParseTicketStatus(status)
	if !ok {
		return nil, apperrors.NewValidationError("Invalid status", map[string]any{"status": status})
	}
	ticket := s.store.TicketByID(ctx, ticketID)
	if ticket == nil {
		return nil, nil
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	ticket.UpdatedAt = s.clock.Now().UTC()
	s.store.SaveTicket(ctx, *ticket)

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketStatusChanged,
		Ticket:  *ticket,
		ActorID: ticket.AssignedTo,
		Payload: events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
	})
	return ticket, nil
}

// TicketByID returns the ticket, or nil.
func (s *TicketService) TicketByID(ctx context.Context, ticketID string) *domain.Ticket {
	return s.store.TicketByID(ctx, ticketID)
}

// AllTickets returns every ticket in insertion order.
func (s *TicketService) AllTickets(ctx context.Context) []domain.Ticket {
	return s.store.AllTickets(ctx)
}

// TicketsForUser scopes tickets by an explicit role.
func (s *TicketService) TicketsForUser(ctx context.Context, userID string, role domain.Role) []domain.Ticket {
	return s.store.TicketsForUser(ctx, userID, role)
}

// TicketsForPrincipal scopes tickets by the role stored on the user record.
// Unknown and deactivated users see nothing.
func (s *TicketService) TicketsForPrincipal(ctx context.Context, userID string) []domain.Ticket {
	user := s.store.UserByID(ctx, userID)
	if user == nil || !user.IsActive {
		return []domain.Ticket{}
	}
	return s.store.TicketsForUser(ctx, user.ID, user.Role)
}

// CanView reports whether user may see ticket.
func CanView(user domain.User, ticket domain.Ticket) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return ticket.CreatedBy == user.ID
	case domain.RoleAgent:
		return ticket.AssignedTo == user.ID
	default:
		return false
	}
}

// TicketsByStatus returns the tickets currently in status.
func (s *TicketService) TicketsByStatus(ctx context.Context, status domain.TicketStatus) []domain.Ticket {
	out := []domain.Ticket{}
	for _, t := range s.store.AllTickets(ctx) {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// SearchTickets matches query against every ticket.
func (s *TicketService) SearchTickets(ctx context.Context, query string) []domain.Ticket {
	return FilterTickets(s.store.AllTickets(ctx), query)
}

// FilterTickets keeps tickets whose id, subject or description contains
// query, ignoring case. An empty query keeps everything.
func FilterTickets(tickets []domain.Ticket, query string) []domain.Ticket {
	q := strings.ToLower(query)
	out := []domain.Ticket{}
	for _, t := range tickets {
		if strings.Contains(strings.ToLower(t.ID), q) ||
			strings.Contains(strings.ToLower(t.Subject), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// Stats counts tickets by lifecycle bucket.
func Stats(tickets []domain.Ticket) TicketStats {
	stats := TicketStats{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case domain.TicketStatusPending:
			stats.Pending++
		case domain.TicketStatusAssigned, domain.TicketStatusInProgress:
			stats.Active++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
	}
	return stats
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Debug("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
