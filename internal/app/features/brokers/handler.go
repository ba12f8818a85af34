// internal/app/features/brokers/handler.go
package brokers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	brokerstore "github.com/dalemusser/leadhub/internal/app/store/brokers"
	"github.com/dalemusser/leadhub/internal/app/system/auditlog"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the broker management endpoints. Destructive operations go
// through the assignment engine so the member-set guard is enforced in one
// place.
type Handler struct {
	Engine *assign.Engine
	Store  *brokerstore.Store
	Audit  *auditlog.Logger
	Log    *zap.Logger
}

func NewHandler(eng *assign.Engine, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Store: eng.Brokers(), Audit: auditLog, Log: logger}
}

type brokerPayload struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

/* ---------------------------------- list ---------------------------------- */

// ServeList handles GET /brokers. Supports ?active=true|false and paging.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	filter := bson.M{}
	switch query.Get(r, "active") {
	case "true":
		filter["is_active"] = true
	case "false":
		filter["is_active"] = false
	}

	page := paging.Parse(r)
	brokers, total, err := h.Store.List(ctx, filter, page)
	if err != nil {
		respond.Error(w, h.Log, "brokers.list", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"brokers": brokers,
		"paging":  paging.NewMeta(page, total),
	})
}

/* --------------------------------- create --------------------------------- */

// ServeCreate handles POST /brokers.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageBrokers(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to manage brokers.")
		return
	}
	var p brokerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	if p.Name == "" {
		respond.BadRequest(w, "Broker name is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, _, actorID, _ := authz.UserCtx(r)
	broker := models.Broker{
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive == nil || *p.IsActive,
		CreatedBy:   actorID,
	}
	if p.Domain != "" {
		broker.Domain = &p.Domain
	}

	created, err := h.Store.Create(ctx, broker)
	if err != nil {
		respond.Error(w, h.Log, "brokers.create", err)
		return
	}
	h.Audit.BrokerCreated(ctx, r, actorID, created.ID, created.Name)
	respond.Created(w, "Broker created.", created)
}

/* ---------------------------------- get ----------------------------------- */

// ServeGet handles GET /brokers/{brokerID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brokerID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	broker, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			respond.Error(w, h.Log, "brokers.get", assign.ErrBrokerNotFound)
			return
		}
		respond.Error(w, h.Log, "brokers.get", err)
		return
	}
	respond.OK(w, "", broker)
}

/* --------------------------------- update --------------------------------- */

// ServeUpdate handles PUT /brokers/{brokerID}. A blank domain clears the
// stored field entirely, freeing the value for other brokers.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageBrokers(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to manage brokers.")
		return
	}
	id, ok := h.brokerID(w, r)
	if !ok {
		return
	}
	var p brokerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	if p.Name == "" {
		respond.BadRequest(w, "Broker name is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	broker := models.Broker{
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive == nil || *p.IsActive,
	}
	if p.Domain != "" {
		broker.Domain = &p.Domain
	}

	if err := h.Store.Update(ctx, id, broker); err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			respond.Error(w, h.Log, "brokers.update", assign.ErrBrokerNotFound)
			return
		}
		respond.Error(w, h.Log, "brokers.update", err)
		return
	}
	updated, err := h.Store.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, "brokers.update", err)
		return
	}
	respond.OK(w, "Broker updated.", updated)
}

// ServeSetActive handles POST /brokers/{brokerID}/active with {"is_active":bool}.
func (h *Handler) ServeSetActive(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageBrokers(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to manage brokers.")
		return
	}
	id, ok := h.brokerID(w, r)
	if !ok {
		return
	}
	var p struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.IsActive == nil {
		respond.BadRequest(w, "Body must include is_active.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Store.SetActive(ctx, id, *p.IsActive); err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			respond.Error(w, h.Log, "brokers.set_active", assign.ErrBrokerNotFound)
			return
		}
		respond.Error(w, h.Log, "brokers.set_active", err)
		return
	}
	respond.OK(w, "Broker updated.", nil)
}

/* --------------------------------- delete --------------------------------- */

// ServeDelete handles DELETE /brokers/{brokerID}. Refused with the current
// member count while any lead is still assigned.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageBrokers(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to manage brokers.")
		return
	}
	id, ok := h.brokerID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Engine.DeleteBroker(ctx, id); err != nil {
		respond.Error(w, h.Log, "brokers.delete", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.BrokerDeleted(ctx, r, actorID, id)
	respond.OK(w, "Broker deleted.", nil)
}

/* ------------------------------ member leads -------------------------------- */

// ServeMemberLeads handles GET /brokers/{brokerID}/leads: the leads this
// broker currently holds, read from the lead side of the relationship.
func (h *Handler) ServeMemberLeads(w http.ResponseWriter, r *http.Request) {
	id, ok := h.brokerID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Store.GetByID(ctx, id); err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			respond.Error(w, h.Log, "brokers.member_leads", assign.ErrBrokerNotFound)
			return
		}
		respond.Error(w, h.Log, "brokers.member_leads", err)
		return
	}

	leads, err := h.Engine.Leads().AssignedTo(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, "brokers.member_leads", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}

/* ---------------------------------- stats ---------------------------------- */

// ServeStats handles GET /brokers/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	stats, err := h.Store.GetStats(ctx)
	if err != nil {
		respond.Error(w, h.Log, "brokers.stats", err)
		return
	}
	respond.OK(w, "", stats)
}

func (h *Handler) brokerID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "brokerID"))
	if err != nil {
		respond.BadRequest(w, "Invalid broker id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
