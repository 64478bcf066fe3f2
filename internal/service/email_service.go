package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/store"
)

// CreateEmailInput describes an in-app email.
type CreateEmailInput struct {
	ToUserID   string
	FromUserID string
	Subject    string
	Body       string
}

// EmailService manages the in-app mailbox.
type EmailService struct {
	store *store.Store
	clock clock.Clock
}

// NewEmailService constructs the service.
func NewEmailService(st *store.Store, clk clock.Clock) *EmailService {
	if clk == nil {
		clk = clock.Real()
	}
	return &EmailService{store: st, clock: clk}
}

// CreateEmail stores an unread email stamped with the current time.
func (s *EmailService) CreateEmail(ctx context.Context, in CreateEmailInput) domain.Email {
	email := domain.Email{
		ID:         "email_" + uuid.NewString(),
		ToUserID:   in.ToUserID,
		FromUserID: in.FromUserID,
		Subject:    in.Subject,
		Body:       in.Body,
		Timestamp:  s.clock.Now().UTC(),
	}
	s.store.SaveEmail(ctx, email)
	return email
}

// EmailsForUser returns userID's mailbox, newest first.
func (s *EmailService) EmailsForUser(ctx context.Context, userID string) []domain.Email {
	emails := s.store.EmailsForUser(ctx, userID)
	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Timestamp.After(emails[j].Timestamp)
	})
	return emails
}

// UnreadCount counts userID's unread emails.
func (s *EmailService) UnreadCount(ctx context.Context, userID string) int {
	n := 0
	for _, e := range s.store.EmailsForUser(ctx, userID) {
		if !e.IsRead {
			n++
		}
	}
	return n
}

// EmailByID returns the email, or nil.
func (s *EmailService) EmailByID(ctx context.Context, id string) *domain.Email {
	return s.store.EmailByID(ctx, id)
}

// MarkAsRead flags the email read and reports whether it exists.
func (s *EmailService) MarkAsRead(ctx context.Context, id string) bool {
	return s.store.MarkEmailRead(ctx, id)
}
