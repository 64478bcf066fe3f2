package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// SeedData is what Seed writes into an empty store.
type SeedData struct {
	Users   []domain.User
	Tickets []domain.Ticket
	Emails  []domain.Email
}

type seedUser struct {
	id, email, username, password string
	role                          domain.Role
}

var fixtureUsers = []seedUser{
	{"user_admin", "admin@tms.com", "admin", "admin123", domain.RoleAdmin},
	{"user_agent1", "agent1@tms.com", "agent1", "agent123", domain.RoleAgent},
	{"user_agent2", "agent2@tms.com", "agent2", "agent123", domain.RoleAgent},
	{"user_customer1", "customer@example.com", "customer1", "customer123", domain.RoleCustomer},
}

// Fixtures builds the demo data set: one admin, two agents, one customer,
// two tickets and the two emails those tickets produced. Passwords go
// through hashPassword.
func Fixtures(now time.Time, hashPassword func(string) (string, error)) (SeedData, error) {
	var data SeedData
	for _, u := range fixtureUsers {
		hash, err := hashPassword(u.password)
		if err != nil {
			return SeedData{}, fmt.Errorf("hash password for %s: %w", u.id, err)
		}
		data.Users = append(data.Users, domain.User{
			ID:           u.id,
			Email:        u.email,
			Username:     u.username,
			PasswordHash: hash,
			Role:         u.role,
			CreatedAt:    now,
			IsActive:     true,
		})
	}

	dayAgo := now.Add(-24 * time.Hour)
	halfDayAgo := now.Add(-12 * time.Hour)
	quarterDayAgo := now.Add(-6 * time.Hour)

	data.Tickets = []domain.Ticket{
		{
			ID:          "TCKT-20250827-0001",
			Subject:     "Login Issue",
			Description: "Cannot login to my account with correct credentials.",
			Priority:    domain.TicketPriorityHigh,
			Status:      domain.TicketStatusPending,
			CreatedBy:   "user_customer1",
			CreatedAt:   dayAgo,
			UpdatedAt:   dayAgo,
		},
		{
			ID:          "TCKT-20250827-0002",
			Subject:     "Feature Request",
			Description: "Would like to have dark mode option in the application.",
			Priority:    domain.TicketPriorityLow,
			Status:      domain.TicketStatusAssigned,
			CreatedBy:   "user_customer1",
			AssignedTo:  "user_agent1",
			CreatedAt:   halfDayAgo,
			UpdatedAt:   quarterDayAgo,
		},
	}

	data.Emails = []domain.Email{
		{
			ID:         "email_001",
			ToUserID:   "user_customer1",
			FromUserID: "user_admin",
			Subject:    "Ticket Received: TCKT-20250827-0001",
			Body:       `We have received your ticket "Login Issue". Our team is working on it and will contact you soon.`,
			Timestamp:  dayAgo,
		},
		{
			ID:         "email_002",
			ToUserID:   "user_customer1",
			FromUserID: "user_admin",
			Subject:    "Ticket Assigned: TCKT-20250827-0002",
			Body:       `Your ticket "Feature Request" has been assigned to our team and is being worked on.`,
			Timestamp:  quarterDayAgo,
		},
	}
	return data, nil
}

// Seed writes data when the users collection is empty and reports whether
// it did.
func (s *Store) Seed(ctx context.Context, data SeedData) bool {
	defer s.flush()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(s.AllUsers(ctx)) > 0 {
		return false
	}
	writeCollection(ctx, s, s.keys.Users, data.Users)
	writeCollection(ctx, s, s.keys.Tickets, data.Tickets)
	writeCollection(ctx, s, s.keys.Emails, data.Emails)
	s.logger.Info("seeded store",
		zap.Int("users", len(data.Users)),
		zap.Int("tickets", len(data.Tickets)),
		zap.Int("emails", len(data.Emails)))
	return true
}
