// internal/app/features/consistency/handler.go
package consistency

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/system/auditlog"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler exposes the operator tooling for the lead/broker invariant:
// a full sweep that reports half-written pairs, and a forced repair that
// clears one. Mounted admin-only.
type Handler struct {
	Engine *assign.Engine
	Audit  *auditlog.Logger
	Log    *zap.Logger
}

func NewHandler(eng *assign.Engine, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Audit: auditLog, Log: logger}
}

// ServeSweep handles GET /consistency. An empty list means every assignment
// is recorded on both sides.
func (h *Handler) ServeSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	found, err := h.Engine.FindInconsistencies(ctx)
	if err != nil {
		respond.Error(w, h.Log, "consistency.sweep", err)
		return
	}
	if found == nil {
		found = []assign.Inconsistency{}
	}
	if len(found) > 0 {
		h.Log.Warn("consistency sweep found divergent pairs", zap.Int("count", len(found)))
	}
	respond.OK(w, "", map[string]any{
		"inconsistencies": found,
		"count":           len(found),
	})
}

// ServeRepair handles POST /consistency/repair with {"lead_id","broker_id"}.
// The pair is forcibly cleared from both sides.
func (h *Handler) ServeRepair(w http.ResponseWriter, r *http.Request) {
	var p struct {
		LeadID   string `json:"lead_id"`
		BrokerID string `json:"broker_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	leadID, err := primitive.ObjectIDFromHex(p.LeadID)
	if err != nil {
		respond.BadRequest(w, "Invalid lead id.")
		return
	}
	brokerID, err := primitive.ObjectIDFromHex(p.BrokerID)
	if err != nil {
		respond.BadRequest(w, "Invalid broker id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Engine.RepairPair(ctx, leadID, brokerID); err != nil {
		respond.Error(w, h.Log, "consistency.repair", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.PairRepaired(ctx, r, actorID, leadID, brokerID)
	h.Log.Info("repaired divergent assignment pair",
		zap.String("lead_id", p.LeadID), zap.String("broker_id", p.BrokerID))
	respond.OK(w, "Pair repaired.", nil)
}

// Routes returns the consistency subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeSweep)
	r.Post("/repair", h.ServeRepair)
	return r
}
