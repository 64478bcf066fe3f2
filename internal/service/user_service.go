package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/store"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// UnknownName stands in for a user reference that no longer resolves.
const UnknownName = "Unknown"

// UpdateUserInput carries the admin-editable fields. Nil means unchanged.
type UpdateUserInput struct {
	Username *string
	Role     *string
	IsActive *bool
}

// UserService is the admin view over accounts.
type UserService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(st *store.Store, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: st, logger: logger}
}

// ListUsers returns every account in insertion order.
func (s *UserService) ListUsers(ctx context.Context) []domain.User {
	return s.store.AllUsers(ctx)
}

// UserByID returns the user, or nil.
func (s *UserService) UserByID(ctx context.Context, id string) *domain.User {
	return s.store.UserByID(ctx, id)
}

// ListAgents returns the active agents, the candidates for assignment.
func (s *UserService) ListAgents(ctx context.Context) []domain.User {
	out := []domain.User{}
	for _, u := range s.store.AllUsers(ctx) {
		if u.Role == domain.RoleAgent && u.IsActive {
			out = append(out, u)
		}
	}
	return out
}

// IsAssignableAgent reports whether id names an active agent.
func (s *UserService) IsAssignableAgent(ctx context.Context, id string) bool {
	u := s.store.UserByID(ctx, id)
	return u != nil && u.Role == domain.RoleAgent && u.IsActive
}

// UpdateUser applies in to the user. An unknown id yields nil and no error.
func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	var problems []string
	if in.Username != nil && utf8.RuneCountInString(strings.TrimSpace(*in.Username)) < 2 {
		problems = append(problems, MsgUsernameTooShort)
	}
	var role domain.Role
	if in.Role != nil {
		r, ok := domain.ParseRole(*in.Role)
		if !ok {
			problems = append(problems, MsgRoleInvalid)
		}
		role = r
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationErrors(problems)
	}

	user := s.store.UserByID(ctx, id)
	if user == nil {
		return nil, nil
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Role != nil {
		user.Role = role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	s.store.SaveUser(ctx, *user)
	s.logger.Info("user updated", zap.String("user_id", id))
	return user, nil
}

// DeleteUser removes the account and reports whether it existed. Tickets
// and emails referring to it keep the dangling id.
func (s *UserService) DeleteUser(ctx context.Context, id string) bool {
	if s.store.UserByID(ctx, id) == nil {
		return false
	}
	s.store.DeleteUser(ctx, id)
	s.logger.Info("user deleted", zap.String("user_id", id))
	return true
}

// DisplayName returns the username for id, or UnknownName.
func (s *UserService) DisplayName(ctx context.Context, id string) string {
	return s.NameResolver(ctx)(id)
}

// NameResolver snapshots the users once and resolves ids against it.
func (s *UserService) NameResolver(ctx context.Context) func(id string) string {
	names := make(map[string]string)
	for _, u := range s.store.AllUsers(ctx) {
		names[u.ID] = u.Username
	}
	return func(id string) string {
		if name, ok := names[id]; ok && name != "" {
			return name
		}
		return UnknownName
	}
}
