// internal/app/system/authz/roles.go
package authz

import (
	"net/http"
	"strings"
)

// Canonical role names. Roles are stored lowercased on the user record and
// compared lowercased everywhere.
const (
	RoleAdmin            = "admin"
	RoleAffiliateManager = "affiliate_manager"
	RoleLeadManager      = "lead_manager"
	RoleAgent            = "agent"
)

// ValidRole reports whether role (any casing) is one of the canonical roles.
func ValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin, RoleAffiliateManager, RoleLeadManager, RoleAgent:
		return true
	}
	return false
}

// HasAnyRole reports whether the current request's user has any of the given roles.
// Returns false if no user is present (i.e., not signed in).
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	cur := strings.ToLower(role)
	for _, want := range roles {
		if cur == strings.ToLower(strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// HasRole is a convenience wrapper for a single role.
func HasRole(r *http.Request, role string) bool {
	return HasAnyRole(r, role)
}

// Role returns the current user's role (lowercased) and whether a user is present.
func Role(r *http.Request) (string, bool) {
	role, _, _, ok := UserCtx(r)
	return strings.ToLower(role), ok
}
