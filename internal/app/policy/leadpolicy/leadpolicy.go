// Package leadpolicy provides authorization policies for lead access.
//
// Authorization rules:
//   - Admins and affiliate managers can view and manage all leads
//   - Lead managers can view and manage only the leads they created
//   - Agents can view only the leads currently assigned to them, read-only
//   - Broker assignment and bulk deletion are reserved for the manager roles
package leadpolicy

import (
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrForbidden is returned when the current user is not allowed to perform
// the requested lead operation. Handlers map it to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ListScope describes which leads the current user may list.
type ListScope struct {
	// CanList indicates whether the user can list leads at all.
	CanList bool
	// All indicates an unrestricted view (admin, affiliate manager).
	All bool
	// CreatorID restricts the view to leads created by this user (lead manager).
	CreatorID primitive.ObjectID
	// AgentID restricts the view to leads assigned to this agent.
	AgentID primitive.ObjectID
}

// ScopeFor determines what scope of leads the current user can list.
//
// Authorization:
//   - Admin / affiliate manager: all leads
//   - Lead manager: leads they created
//   - Agent: leads assigned to them
//   - Others / anonymous: cannot list
func ScopeFor(r *http.Request) ListScope {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return ListScope{}
	}
	switch role {
	case authz.RoleAdmin, authz.RoleAffiliateManager:
		return ListScope{CanList: true, All: true}
	case authz.RoleLeadManager:
		return ListScope{CanList: true, CreatorID: uid}
	case authz.RoleAgent:
		return ListScope{CanList: true, AgentID: uid}
	}
	return ListScope{}
}

// CanViewLead reports whether the current user may read the given lead.
func CanViewLead(r *http.Request, lead *models.Lead) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	switch role {
	case authz.RoleAdmin, authz.RoleAffiliateManager:
		return true
	case authz.RoleLeadManager:
		return lead.CreatedBy == uid
	case authz.RoleAgent:
		return lead.AssignedAgent != nil && *lead.AssignedAgent == uid
	}
	return false
}

// CanMutateLead reports whether the current user may edit or delete the given
// lead. Lead managers are restricted to leads they created; agents never
// mutate leads.
func CanMutateLead(r *http.Request, lead *models.Lead) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	switch role {
	case authz.RoleAdmin, authz.RoleAffiliateManager:
		return true
	case authz.RoleLeadManager:
		return lead.CreatedBy == uid
	}
	return false
}

// CanAssignBrokers reports whether the current user may drive broker
// assignment and unassignment.
func CanAssignBrokers(r *http.Request) bool {
	return authz.CanManageBrokers(r)
}

// CanBulkDelete reports whether the current user may run filtered bulk
// deletion. Destructive and unrecoverable, so admin only.
func CanBulkDelete(r *http.Request) bool {
	return authz.IsAdmin(r)
}
