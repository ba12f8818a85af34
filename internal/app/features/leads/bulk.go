// internal/app/features/leads/bulk.go
package leads

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type bulkAgentPayload struct {
	LeadIDs []string `json:"lead_ids"`
	AgentID string   `json:"agent_id"`
}

func parseIDs(raw []string) ([]primitive.ObjectID, string) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, s
		}
		ids = append(ids, id)
	}
	return ids, ""
}

// ServeBulkAssignAgent handles POST /leads/bulk/assign-agent. Best-effort:
// the response lists which leads took the agent and which were skipped.
func (h *Handler) ServeBulkAssignAgent(w http.ResponseWriter, r *http.Request) {
	if !leadpolicy.CanAssignBrokers(r) {
		respond.Error(w, h.Log, "leads.bulk_assign_agent", leadpolicy.ErrForbidden)
		return
	}
	var p bulkAgentPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.LeadIDs) == 0 || p.AgentID == "" {
		respond.BadRequest(w, "Body must include lead_ids and agent_id.")
		return
	}
	leadIDs, bad := parseIDs(p.LeadIDs)
	if bad != "" {
		respond.BadRequest(w, "Invalid lead id: "+bad)
		return
	}
	agentID, err := primitive.ObjectIDFromHex(p.AgentID)
	if err != nil {
		respond.BadRequest(w, "Invalid agent id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Engine.BulkAssignAgent(ctx, leadIDs, agentID)
	if err != nil {
		respond.Error(w, h.Log, "leads.bulk_assign_agent", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.AgentBulkAssigned(ctx, r, actorID, agentID, len(res.Succeeded), len(res.Failed))
	respond.OK(w, "Bulk agent assignment processed.", res)
}

// ServeBulkUnassignAgent handles POST /leads/bulk/unassign-agent.
func (h *Handler) ServeBulkUnassignAgent(w http.ResponseWriter, r *http.Request) {
	if !leadpolicy.CanAssignBrokers(r) {
		respond.Error(w, h.Log, "leads.bulk_unassign_agent", leadpolicy.ErrForbidden)
		return
	}
	var p struct {
		LeadIDs []string `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.LeadIDs) == 0 {
		respond.BadRequest(w, "Body must include lead_ids.")
		return
	}
	leadIDs, bad := parseIDs(p.LeadIDs)
	if bad != "" {
		respond.BadRequest(w, "Invalid lead id: "+bad)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Engine.BulkUnassignAgent(ctx, leadIDs)
	if err != nil {
		respond.Error(w, h.Log, "leads.bulk_unassign_agent", err)
		return
	}
	respond.OK(w, "Bulk agent unassignment processed.", res)
}

func leadstoreFilter(p bulkDeletePayload) leadstore.Filter {
	return leadstore.Filter{
		LeadType:         p.LeadType,
		Country:          p.Country,
		Gender:           p.Gender,
		Status:           p.Status,
		DocumentStatus:   p.DocumentStatus,
		Assigned:         p.Assigned,
		Search:           p.Search,
		IncludeConverted: p.IncludeConverted,
	}
}

type bulkDeletePayload struct {
	LeadType         string `json:"lead_type"`
	Country          string `json:"country"`
	Gender           string `json:"gender"`
	Status           string `json:"status"`
	DocumentStatus   string `json:"document_status"`
	Assigned         *bool  `json:"assigned"`
	Search           string `json:"search"`
	IncludeConverted bool   `json:"include_converted"`
}

// ServeBulkDelete handles POST /leads/bulk/delete. Admin only. The response
// reports only the number removed; broker-assigned leads are never touched.
func (h *Handler) ServeBulkDelete(w http.ResponseWriter, r *http.Request) {
	if !leadpolicy.CanBulkDelete(r) {
		respond.Error(w, h.Log, "leads.bulk_delete", leadpolicy.ErrForbidden)
		return
	}
	var p bulkDeletePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	f := leadstoreFilter(p)
	n, err := h.Engine.BulkDelete(ctx, leadpolicy.ScopeFor(r), f)
	if err != nil {
		respond.Error(w, h.Log, "leads.bulk_delete", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.LeadsDeleted(ctx, r, actorID, n)
	respond.OK(w, "Bulk delete processed.", map[string]int64{"deleted": n})
}
