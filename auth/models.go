package auth

import "strings"

type Role string

const (
	RoleCleaner   Role = "cleaner"
	RoleHomeowner Role = "homeowner"
	RoleOwner     Role = "owner"
	RoleHR        Role = "hr"
)

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID string
	Role   Role
}

// ParseRole normalises a role string. It returns false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleCleaner, RoleHomeowner, RoleOwner, RoleHR:
		return true
	default:
		return false
	}
}

// IsArbiter reports whether the role may resolve escalated disputes.
func (r Role) IsArbiter() bool {
	return r == RoleOwner || r == RoleHR
}
