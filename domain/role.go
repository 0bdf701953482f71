package domain

import "strings"

// Role is the profile-level or office-level authority of a user.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole normalises a stored role value. Unknown values degrade to RoleUser.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSuperAdmin
}

// IsOfficeAdmin reports whether an office-scoped role grants office administration.
func (r Role) IsOfficeAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}
