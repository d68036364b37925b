package auth

import "github.com/spec-kit/helpdesk/internal/domain"

// Principal represents the caller of a request.
type Principal struct {
	User      *domain.User
	SessionID string
}

// Anonymous is the principal of requests without a valid session.
var Anonymous = &Principal{}

// IsAnonymous reports whether no user is bound.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.User == nil
}

// UserID returns the bound user id, or 0 for anonymous callers.
func (p *Principal) UserID() int64 {
	if p.IsAnonymous() {
		return 0
	}
	return p.User.ID
}

// HasRole reports whether the bound user holds one of roles.
func (p *Principal) HasRole(roles ...domain.Role) bool {
	if p.IsAnonymous() {
		return false
	}
	for _, role := range roles {
		if p.User.Role == role {
			return true
		}
	}
	return false
}
