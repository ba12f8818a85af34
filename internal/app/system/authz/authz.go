// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/leadhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false. This ensures callers can trust that
// ok=true means a valid, authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == RoleAdmin
}

// IsAffiliateManager reports whether the current request's user is an affiliate manager.
func IsAffiliateManager(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == RoleAffiliateManager
}

// IsLeadManager reports whether the current request's user is a lead manager.
func IsLeadManager(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == RoleLeadManager
}

// IsAgent reports whether the current request's user is an agent.
func IsAgent(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == RoleAgent
}

// CanManageBrokers reports whether the current user can create/edit/delete
// brokers and drive broker assignments. Only admins and affiliate managers can.
func CanManageBrokers(r *http.Request) bool {
	return HasAnyRole(r, RoleAdmin, RoleAffiliateManager)
}

// CanManageLeads reports whether the current user can create and edit leads.
// Admins and affiliate managers manage all leads; lead managers manage the
// leads they created (ownership is enforced by the lead policy, not here).
func CanManageLeads(r *http.Request) bool {
	return HasAnyRole(r, RoleAdmin, RoleAffiliateManager, RoleLeadManager)
}
