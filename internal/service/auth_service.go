package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	v "github.com/asaskevich/govalidator"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/session"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Landing pages per role.
const (
	LandingAdmin = "/admin"
	LandingAgent = "/agent/dashboard"
	LandingUser  = "/dashboard"
)

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users      repository.UserRepository
	sessions   session.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	SessionStore session.Store
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// AccountInput carries the fields needed to open an account.
type AccountInput struct {
	Name     string
	Email    string
	Password string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
	Landing   string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionStore,
		tokenMgr:   deps.TokenManager,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Register creates a USER account. A taken email is rejected and no row is written.
func (s *AuthService) Register(ctx context.Context, input AccountInput) (*domain.User, error) {
	return createAccount(ctx, s.users, s.bcryptCost, input, domain.RoleUser)
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalidCredentials()
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	token, err := s.tokenMgr.GenerateToken(sess.ID, sess.ExpiresAt)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Landing:   LandingPath(user.Role),
	}, nil
}

// Logout removes the caller's session. Anonymous callers are a no-op.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal.IsAnonymous() || principal.SessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, principal.SessionID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// LandingPath maps a role to the page shown after login.
func LandingPath(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return LandingAdmin
	case domain.RoleAgent:
		return LandingAgent
	default:
		return LandingUser
	}
}

// EnsureAdmin seeds the bootstrap administrator. An existing account with the
// same email is promoted instead of recreated.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.BootstrapConfig) (*domain.User, error) {
	email := normalizeEmail(cfg.AdminEmail)
	if email == "" {
		return nil, nil
	}
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			if err := s.users.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return nil, apperrors.MapError(err)
			}
			existing.Role = domain.RoleAdmin
			s.logger.Info("bootstrap admin promoted", zap.Int64("user_id", existing.ID))
		}
		return existing, nil
	case !apperrors.IsNotFound(err):
		return nil, apperrors.MapError(err)
	}

	name := cfg.AdminName
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	user, err := createAccount(ctx, s.users, s.bcryptCost, AccountInput{
		Name:     name,
		Email:    email,
		Password: cfg.AdminPassword,
	}, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin created", zap.Int64("user_id", user.ID))
	return user, nil
}

func createAccount(ctx context.Context, users repository.UserRepository, cost int, input AccountInput, role domain.Role) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if email == "" {
		details["email"] = "required"
	} else if !v.IsEmail(email) {
		details["email"] = "invalid"
	}
	if input.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid account details", details)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil, emailTaken()
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, cost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, emailTaken()
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailTaken() error {
	return apperrors.NewDomainError("EMAIL_TAKEN", MsgEmailTaken, http.StatusBadRequest, nil)
}

func invalidCredentials() error {
	return apperrors.NewDomainError("INVALID_CREDENTIALS", MsgInvalidCredentials, http.StatusUnauthorized, nil)
}
