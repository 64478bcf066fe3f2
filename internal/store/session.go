package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// SetCurrentUser points the session at userID.
func (s *Store) SetCurrentUser(ctx context.Context, userID string) {
	raw, err := json.Marshal(userID)
	if err != nil {
		s.logger.Error("storage encode failed", zap.String("key", s.keys.CurrentUser), zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, s.keys.CurrentUser, raw); err != nil {
		s.logger.Error("storage write failed", zap.String("key", s.keys.CurrentUser), zap.Error(err))
		s.metrics.RecordStorageFailure(s.keys.CurrentUser, "write")
	}
}

// CurrentUserID returns the session user id, if any.
func (s *Store) CurrentUserID(ctx context.Context) (string, bool) {
	raw, found, err := s.kv.Get(ctx, s.keys.CurrentUser)
	if err != nil {
		s.logger.Error("storage read failed", zap.String("key", s.keys.CurrentUser), zap.Error(err))
		s.metrics.RecordStorageFailure(s.keys.CurrentUser, "read")
		return "", false
	}
	if !found {
		return "", false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		s.logger.Error("storage value undecodable", zap.String("key", s.keys.CurrentUser), zap.Error(err))
		s.metrics.RecordStorageFailure(s.keys.CurrentUser, "read")
		return "", false
	}
	return id, id != ""
}

// CurrentUser resolves the session pointer. A pointer to a user that no
// longer exists resolves to nil.
func (s *Store) CurrentUser(ctx context.Context) *domain.User {
	id, ok := s.CurrentUserID(ctx)
	if !ok {
		return nil
	}
	return s.UserByID(ctx, id)
}

// ClearCurrentUser removes the session pointer.
func (s *Store) ClearCurrentUser(ctx context.Context) {
	if err := s.kv.Remove(ctx, s.keys.CurrentUser); err != nil {
		s.logger.Error("storage remove failed", zap.String("key", s.keys.CurrentUser), zap.Error(err))
		s.metrics.RecordStorageFailure(s.keys.CurrentUser, "write")
	}
}
