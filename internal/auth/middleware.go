package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/session"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// SessionMiddleware resolves the session cookie into a principal.
type SessionMiddleware struct {
	tokens     *TokenManager
	sessions   session.Store
	users      repository.UserRepository
	cookieName string
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, sessions session.Store, users repository.UserRepository, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, sessions: sessions, users: users, cookieName: cookieName}
}

// Load stores the caller's principal in the request locals. Requests without
// a usable session get Anonymous; only store failures abort the request.
func (m *SessionMiddleware) Load(c *fiber.Ctx) error {
	principal := Anonymous
	if raw := c.Cookies(m.cookieName); raw != "" {
		resolved, err := m.resolve(c, raw)
		if err != nil {
			return err
		}
		principal = resolved
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *SessionMiddleware) resolve(c *fiber.Ctx, raw string) (*Principal, error) {
	sessionID, err := m.tokens.ParseToken(raw)
	if err != nil {
		return Anonymous, nil
	}
	sess, err := m.sessions.Get(c.UserContext(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Anonymous, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	user, err := m.users.GetByID(c.UserContext(), sess.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return Anonymous, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &Principal{User: user, SessionID: sess.ID}, nil
}

// PrincipalFromContext retrieves the caller; it never returns nil.
func PrincipalFromContext(c *fiber.Ctx) *Principal {
	if principal, ok := c.Locals(principalKey).(*Principal); ok && principal != nil {
		return principal
	}
	return Anonymous
}
