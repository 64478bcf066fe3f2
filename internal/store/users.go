package store

import (
	"context"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// AllUsers returns every user in insertion order.
func (s *Store) AllUsers(ctx context.Context) []domain.User {
	return readCollection[domain.User](ctx, s, s.keys.Users)
}

// UserByID returns the user with id, or nil.
func (s *Store) UserByID(ctx context.Context, id string) *domain.User {
	return findByID(s.AllUsers(ctx), id)
}

// UserByEmail returns the user registered under email, or nil.
func (s *Store) UserByEmail(ctx context.Context, email string) *domain.User {
	for _, u := range s.AllUsers(ctx) {
		if u.Email == email {
			found := u
			return &found
		}
	}
	return nil
}

// SaveUser inserts or replaces user by id.
func (s *Store) SaveUser(ctx context.Context, user domain.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	users := upsert(s.AllUsers(ctx), user)
	writeCollection(ctx, s, s.keys.Users, users)
}

// DeleteUser removes the user with id. Tickets and emails that reference
// the user are left alone.
func (s *Store) DeleteUser(ctx context.Context, id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	users := s.AllUsers(ctx)
	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	writeCollection(ctx, s, s.keys.Users, kept)
}
