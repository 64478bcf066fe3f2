package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// ParseTicketStatus converts caller input into a TicketStatus.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	st := TicketStatus(s)
	return st, st.Valid()
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ParseTicketPriority converts caller input into a TicketPriority.
func ParseTicketPriority(s string) (TicketPriority, bool) {
	p := TicketPriority(s)
	return p, p.Valid()
}

// Ticket is a unit of support work. AssignedTo is empty until an admin
// assigns the ticket.
type Ticket struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	CreatedBy   string         `json:"createdBy"`
	AssignedTo  string         `json:"assignedTo,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// RecordID returns the ticket id.
func (t Ticket) RecordID() string { return t.ID }

// IsAssigned reports whether an agent has been set.
func (t Ticket) IsAssigned() bool { return t.AssignedTo != "" }
