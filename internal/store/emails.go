package store

import (
	"context"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// AllEmails returns every email in insertion order.
func (s *Store) AllEmails(ctx context.Context) []domain.Email {
	return readCollection[domain.Email](ctx, s, s.keys.Emails)
}

// EmailByID returns the email with id, or nil.
func (s *Store) EmailByID(ctx context.Context, id string) *domain.Email {
	return findByID(s.AllEmails(ctx), id)
}

// SaveEmail inserts or replaces email by id.
func (s *Store) SaveEmail(ctx context.Context, email domain.Email) {
	defer s.flush()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	emails := upsert(s.AllEmails(ctx), email)
	writeCollection(ctx, s, s.keys.Emails, emails)
}

// EmailsForUser returns the emails addressed to userID in insertion order.
func (s *Store) EmailsForUser(ctx context.Context, userID string) []domain.Email {
	out := []domain.Email{}
	for _, e := range s.AllEmails(ctx) {
		if e.ToUserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// MarkEmailRead sets IsRead on the email with id. It reports whether the
// email exists. An email that is already read is not rewritten.
func (s *Store) MarkEmailRead(ctx context.Context, id string) bool {
	defer s.flush()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	emails := s.AllEmails(ctx)
	for i := range emails {
		if emails[i].ID != id {
			continue
		}
		if !emails[i].IsRead {
			emails[i].IsRead = true
			writeCollection(ctx, s, s.keys.Emails, emails)
		}
		return true
	}
	return false
}
