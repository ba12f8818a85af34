// internal/app/features/leads/assignbroker.go
package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type assignBrokerPayload struct {
	OrderID string `json:"order_id"`
	Network string `json:"network"`
	Domain  string `json:"domain"`
}

// ServeAssignBroker handles POST /leads/{leadID}/brokers/{brokerID}. The
// optional body carries the order/network/domain context snapshotted onto
// the assignment record.
func (h *Handler) ServeAssignBroker(w http.ResponseWriter, r *http.Request) {
	if !leadpolicy.CanAssignBrokers(r) {
		respond.Error(w, h.Log, "leads.assign_broker", leadpolicy.ErrForbidden)
		return
	}
	leadID, ok := h.leadID(w, r)
	if !ok {
		return
	}
	brokerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "brokerID"))
	if err != nil {
		respond.BadRequest(w, "Invalid broker id.")
		return
	}

	var p assignBrokerPayload
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respond.BadRequest(w, "Invalid JSON body.")
			return
		}
	}

	_, _, actorID, _ := authz.UserCtx(r)
	actx := assign.AssignContext{ActorID: actorID, Network: p.Network, Domain: p.Domain}
	if p.OrderID != "" {
		oid, err := primitive.ObjectIDFromHex(p.OrderID)
		if err != nil {
			respond.BadRequest(w, "Invalid order id.")
			return
		}
		actx.OrderID = &oid
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lead, broker, err := h.Engine.Assign(ctx, leadID, brokerID, actx)
	if err != nil {
		respond.Error(w, h.Log, "leads.assign_broker", err)
		return
	}
	h.Audit.BrokerAssigned(ctx, r, actorID, leadID, brokerID)
	respond.OK(w, "Lead assigned to broker.", map[string]any{
		"lead":   lead,
		"broker": broker,
	})
}

// ServeListBrokers handles GET /leads/{leadID}/brokers: the lead's
// assignment records joined with the broker documents they point at.
func (h *Handler) ServeListBrokers(w http.ResponseWriter, r *http.Request) {
	leadID, ok := h.leadID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.list_brokers", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.list_brokers", err)
		return
	}
	if !leadpolicy.CanViewLead(r, &lead) {
		respond.Error(w, h.Log, "leads.list_brokers", assign.ErrLeadNotFound)
		return
	}

	brokers, err := h.Engine.Brokers().GetByIDs(ctx, lead.BrokerIDs())
	if err != nil {
		respond.Error(w, h.Log, "leads.list_brokers", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"assignments": lead.AssignedBrokers,
		"brokers":     brokers,
	})
}

// ServeUnassignBroker handles DELETE /leads/{leadID}/brokers/{brokerID}.
func (h *Handler) ServeUnassignBroker(w http.ResponseWriter, r *http.Request) {
	if !leadpolicy.CanAssignBrokers(r) {
		respond.Error(w, h.Log, "leads.unassign_broker", leadpolicy.ErrForbidden)
		return
	}
	leadID, ok := h.leadID(w, r)
	if !ok {
		return
	}
	brokerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "brokerID"))
	if err != nil {
		respond.BadRequest(w, "Invalid broker id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lead, broker, err := h.Engine.Unassign(ctx, leadID, brokerID)
	if err != nil {
		respond.Error(w, h.Log, "leads.unassign_broker", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.BrokerUnassigned(ctx, r, actorID, leadID, brokerID)
	respond.OK(w, "Lead unassigned from broker.", map[string]any{
		"lead":   lead,
		"broker": broker,
	})
}
