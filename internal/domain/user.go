package domain

import (
	"strings"
	"time"
)

// Role gates which operations a user may invoke.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises s and validates it against the closed role set.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	return role, role.Valid()
}

// User is an account that files tickets, works them, or administers the desk.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// IsStaff reports whether the user is an agent or an administrator.
func (u *User) IsStaff() bool {
	return u != nil && (u.Role == RoleAgent || u.Role == RoleAdmin)
}
