package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/store"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// Signup and login messages.
const (
	MsgEmailRequired       = "Email is required"
	MsgEmailInvalid        = "Invalid email format"
	MsgUsernameRequired    = "Username is required"
	MsgUsernameTooShort    = "Username must be at least 2 characters"
	MsgPasswordRequired    = "Password is required"
	MsgPasswordWeak        = "Password must be at least 8 characters with at least 1 digit"
	MsgPasswordMismatch    = "Passwords do not match"
	MsgRoleRequired        = "Role is required"
	MsgRoleInvalid         = "Invalid role"
	MsgEmailExists         = "Email already exists"
	MsgCredentialsRequired = "Email and password are required"
	MsgUserNotFound        = "User not found"
	MsgInvalidPassword     = "Invalid password"
	MsgAccountDeactivated  = "Account is deactivated"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignupInput is the registration form.
type SignupInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	Role            string
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string
	Password string
}

// AuthService coordinates registration, login and the session pointer.
type AuthService struct {
	store      *store.Store
	tokenMgr   *auth.TokenManager
	clock      clock.Clock
	logger     *zap.Logger
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, st *store.Store, clk clock.Clock, logger *zap.Logger) *AuthService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:      st,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		clock:      clk,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// ValidSignupEmail reports whether email has the local@domain.tld shape.
func ValidSignupEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidSignupPassword reports whether password has at least 8 characters
// and at least one digit.
func ValidSignupPassword(password string) bool {
	if utf8.RuneCountInString(password) < 8 {
		return false
	}
	return strings.ContainsAny(password, "0123456789")
}

// ValidateSignup checks every rule and returns all violations in order.
// A format rule is skipped when its field is missing.
func (s *AuthService) ValidateSignup(ctx context.Context, in SignupInput) []string {
	errs := []string{}

	if in.Email == "" {
		errs = append(errs, MsgEmailRequired)
	} else if !ValidSignupEmail(in.Email) {
		errs = append(errs, MsgEmailInvalid)
	}

	if in.Username == "" {
		errs = append(errs, MsgUsernameRequired)
	} else if utf8.RuneCountInString(in.Username) < 2 {
		errs = append(errs, MsgUsernameTooShort)
	}

	if in.Password == "" {
		errs = append(errs, MsgPasswordRequired)
	} else if !ValidSignupPassword(in.Password) {
		errs = append(errs, MsgPasswordWeak)
	}

	if in.Password != in.ConfirmPassword {
		errs = append(errs, MsgPasswordMismatch)
	}

	if in.Role == "" {
		errs = append(errs, MsgRoleRequired)
	} else if _, ok := domain.ParseRole(in.Role); !ok {
		errs = append(errs, MsgRoleInvalid)
	}

	if in.Email != "" && s.store.UserByEmail(ctx, in.Email) != nil {
		errs = append(errs, MsgEmailExists)
	}
	return errs
}

// Signup registers a user and points the session at them. Rule violations
// come back as one validation error listing every message.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if errs := s.ValidateSignup(ctx, in); len(errs) > 0 {
		return nil, apperrors.NewValidationErrors(errs)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := domain.User{
		ID:           "user_" + uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         domain.Role(in.Role),
		CreatedAt:    s.clock.Now().UTC(),
		IsActive:     true,
	}
	s.store.SaveUser(ctx, user)
	s.store.SetCurrentUser(ctx, user.ID)
	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &user, nil
}

// Login checks credentials and points the session at the user. The session
// is left untouched on failure.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError(MsgCredentialsRequired, nil)
	}

	user := s.store.UserByEmail(ctx, in.Email)
	if user == nil {
		return nil, apperrors.NewUnauthorized(MsgUserNotFound)
	}
	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, apperrors.NewUnauthorized(MsgInvalidPassword)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized(MsgAccountDeactivated)
	}

	s.store.SetCurrentUser(ctx, user.ID)
	return user, nil
}

// Logout clears the session pointer.
func (s *AuthService) Logout(ctx context.Context) {
	s.store.ClearCurrentUser(ctx)
}

// CurrentUser returns the logged-in user, or nil.
func (s *AuthService) CurrentUser(ctx context.Context) *domain.User {
	return s.store.CurrentUser(ctx)
}

// IsAuthenticated reports whether the session resolves to a user.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	return s.store.CurrentUser(ctx) != nil
}

// HasRole reports whether the logged-in user has role.
func (s *AuthService) HasRole(ctx context.Context, role domain.Role) bool {
	user := s.store.CurrentUser(ctx)
	return user != nil && user.Role == role
}

// IssueToken signs a bearer token for user.
func (s *AuthService) IssueToken(user domain.User) (string, time.Time, error) {
	return s.tokenMgr.GenerateToken(user.ID, user.Role)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
