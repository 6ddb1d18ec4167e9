package domain

import "strings"

type Role string

const (
	RoleCitizen Role = "citizen"
	RoleCleaner Role = "cleaner"
	RoleAdmin   Role = "admin"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleCitizen, RoleCleaner, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleCleaner, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts the canonical names and "user", the legacy name for citizens.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "citizen", "user":
		return RoleCitizen, true
	case "cleaner":
		return RoleCleaner, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// In reports whether r is one of allowed. An empty role is never allowed.
func (r Role) In(allowed ...Role) bool {
	if r == "" {
		return false
	}
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
