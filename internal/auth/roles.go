package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AccessDenied is the message returned for role and ownership failures.
const AccessDenied = "Access Denied"

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if PrincipalFromContext(c).IsAnonymous() {
			return apperrors.NewUnauthorized("login required")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := PrincipalFromContext(c)
		if principal.IsAnonymous() {
			return apperrors.NewUnauthorized("login required")
		}
		if !principal.HasRole(allowed...) {
			return apperrors.NewForbidden(AccessDenied)
		}
		return c.Next()
	}
}
