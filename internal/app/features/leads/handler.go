// internal/app/features/leads/handler.go
package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/auditlog"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the lead endpoints. Reads go straight to the store with the
// caller's scope applied; anything touching the broker relationship goes
// through the assignment engine.
type Handler struct {
	Engine *assign.Engine
	Store  *leadstore.Store
	Users  *userstore.Store
	Audit  *auditlog.Logger
	Log    *zap.Logger
}

func NewHandler(eng *assign.Engine, users *userstore.Store, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Store: eng.Leads(), Users: users, Audit: auditLog, Log: logger}
}

type leadPayload struct {
	LeadType  string `json:"lead_type"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Prefix    string `json:"prefix"`
	NewEmail  string `json:"new_email"`
	OldEmail  string `json:"old_email"`
	NewPhone  string `json:"new_phone"`
	OldPhone  string `json:"old_phone"`
	Country   string `json:"country"`
	Gender    string `json:"gender"`
	Client    string `json:"client"`
	Status    string `json:"status"`
}

/* ---------------------------------- list ---------------------------------- */

// parseFilter builds a Filter from the closed set of query parameters.
// Unknown parameters are ignored; invalid enum values are dropped by
// BuildQuery rather than erroring.
func parseFilter(r *http.Request) leadstore.Filter {
	f := leadstore.Filter{
		LeadType:         query.Get(r, "lead_type"),
		Country:          query.Get(r, "country"),
		Gender:           query.Get(r, "gender"),
		Status:           query.Get(r, "status"),
		DocumentStatus:   query.Get(r, "document_status"),
		Search:           query.Get(r, "search"),
		IncludeConverted: query.Get(r, "include_converted") == "true",
	}
	switch query.Get(r, "assigned") {
	case "true":
		v := true
		f.Assigned = &v
	case "false":
		v := false
		f.Assigned = &v
	}
	return f
}

// ServeList handles GET /leads. The caller's role scope is always ANDed into
// the query; filters can only narrow it.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	scope := leadpolicy.ScopeFor(r)
	q, ok := leadstore.BuildQuery(scope, parseFilter(r))
	if !ok {
		respond.Error(w, h.Log, "leads.list", leadpolicy.ErrForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page := paging.Parse(r)
	leads, total, err := h.Store.List(ctx, q, query.Get(r, "sort"), page)
	if err != nil {
		respond.Error(w, h.Log, "leads.list", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"leads":  leads,
		"paging": paging.NewMeta(page, total),
	})
}

/* --------------------------------- create --------------------------------- */

// ServeCreate handles POST /leads.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageLeads(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to create leads.")
		return
	}
	var p leadPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	if !models.ValidLeadType(p.LeadType) {
		respond.BadRequest(w, "Unknown lead type.")
		return
	}
	if p.FirstName == "" || p.LastName == "" || p.NewEmail == "" {
		respond.BadRequest(w, "First name, last name and email are required.")
		return
	}
	if p.Status != "" && !models.ValidLeadStatus(p.Status) {
		respond.BadRequest(w, "Unknown lead status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, _, actorID, _ := authz.UserCtx(r)
	lead := models.Lead{
		LeadType:  p.LeadType,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Prefix:    p.Prefix,
		NewEmail:  p.NewEmail,
		OldEmail:  p.OldEmail,
		NewPhone:  p.NewPhone,
		OldPhone:  p.OldPhone,
		Country:   p.Country,
		Gender:    p.Gender,
		Client:    p.Client,
		Status:    p.Status,
		CreatedBy: actorID,
	}

	created, err := h.Store.Create(ctx, lead)
	if err != nil {
		respond.Error(w, h.Log, "leads.create", err)
		return
	}
	respond.Created(w, "Lead created.", created)
}

/* ---------------------------------- get ----------------------------------- */

// ServeGet handles GET /leads/{leadID}. An existing lead outside the
// caller's scope reads as not found rather than forbidden, so agents cannot
// probe for other agents' leads.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.get", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.get", err)
		return
	}
	if !leadpolicy.CanViewLead(r, &lead) {
		respond.Error(w, h.Log, "leads.get", assign.ErrLeadNotFound)
		return
	}
	respond.OK(w, "", lead)
}

/* --------------------------------- update --------------------------------- */

// ServeUpdate handles PUT /leads/{leadID}.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	var p leadPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	if !models.ValidLeadType(p.LeadType) {
		respond.BadRequest(w, "Unknown lead type.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.update", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.update", err)
		return
	}
	if !leadpolicy.CanMutateLead(r, &lead) {
		respond.Error(w, h.Log, "leads.update", leadpolicy.ErrForbidden)
		return
	}

	lead.LeadType = p.LeadType
	lead.FirstName = p.FirstName
	lead.LastName = p.LastName
	lead.Prefix = p.Prefix
	lead.NewEmail = p.NewEmail
	lead.OldEmail = p.OldEmail
	lead.NewPhone = p.NewPhone
	lead.OldPhone = p.OldPhone
	lead.Country = p.Country
	lead.Gender = p.Gender
	lead.Client = p.Client

	if err := h.Store.Update(ctx, id, lead); err != nil {
		respond.Error(w, h.Log, "leads.update", err)
		return
	}
	updated, err := h.Store.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, "leads.update", err)
		return
	}
	respond.OK(w, "Lead updated.", updated)
}

// ServeSetStatus handles POST /leads/{leadID}/status with {"status":"..."}.
func (h *Handler) ServeSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	var p struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !models.ValidLeadStatus(p.Status) {
		respond.BadRequest(w, "Body must include a valid status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.set_status", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.set_status", err)
		return
	}
	// Agents may move their own leads through the pipeline.
	if !leadpolicy.CanMutateLead(r, &lead) && !leadpolicy.CanViewLead(r, &lead) {
		respond.Error(w, h.Log, "leads.set_status", leadpolicy.ErrForbidden)
		return
	}

	if err := h.Store.UpdateStatus(ctx, id, p.Status); err != nil {
		respond.Error(w, h.Log, "leads.set_status", err)
		return
	}
	respond.OK(w, "Lead status updated.", nil)
}

/* -------------------------------- comments --------------------------------- */

// ServeAddComment handles POST /leads/{leadID}/comments. Bodies pass through
// the HTML sanitizer before they are stored.
func (h *Handler) ServeAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	var p struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Body == "" {
		respond.BadRequest(w, "Comment body is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.add_comment", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.add_comment", err)
		return
	}
	if !leadpolicy.CanViewLead(r, &lead) {
		respond.Error(w, h.Log, "leads.add_comment", assign.ErrLeadNotFound)
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	comment, err := h.Store.AddComment(ctx, id, actorID, htmlsanitize.Sanitize(p.Body))
	if err != nil {
		respond.Error(w, h.Log, "leads.add_comment", err)
		return
	}
	respond.Created(w, "Comment added.", comment)
}

/* ------------------------------- documents ---------------------------------- */

// ServeAddDocument handles POST /leads/{leadID}/documents.
func (h *Handler) ServeAddDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	var p struct {
		URL         string `json:"url"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		respond.BadRequest(w, "Document URL is required.")
		return
	}
	if p.Status == "" {
		p.Status = "pending"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.add_document", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.add_document", err)
		return
	}
	if !leadpolicy.CanMutateLead(r, &lead) {
		respond.Error(w, h.Log, "leads.add_document", leadpolicy.ErrForbidden)
		return
	}

	doc := models.LeadDocument{URL: p.URL, Description: p.Description, Status: p.Status}
	if err := h.Store.AddDocument(ctx, id, doc); err != nil {
		respond.Error(w, h.Log, "leads.add_document", err)
		return
	}
	respond.Created(w, "Document added.", doc)
}

/* --------------------------------- delete --------------------------------- */

// ServeDelete handles DELETE /leads/{leadID}. A lead still assigned to any
// broker is refused; unassign first.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lead, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			respond.Error(w, h.Log, "leads.delete", assign.ErrLeadNotFound)
			return
		}
		respond.Error(w, h.Log, "leads.delete", err)
		return
	}
	if !leadpolicy.CanMutateLead(r, &lead) {
		respond.Error(w, h.Log, "leads.delete", leadpolicy.ErrForbidden)
		return
	}
	if len(lead.AssignedBrokers) > 0 {
		respond.Fail(w, http.StatusConflict, "Lead is assigned to one or more brokers; unassign it first.")
		return
	}

	if err := h.Store.Delete(ctx, id); err != nil {
		respond.Error(w, h.Log, "leads.delete", err)
		return
	}
	respond.OK(w, "Lead deleted.", nil)
}

/* ---------------------------------- stats ---------------------------------- */

// ServeStats handles GET /leads/stats, scoped like listings.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	scope := leadpolicy.ScopeFor(r)
	q, ok := leadstore.BuildQuery(scope, leadstore.Filter{IncludeConverted: true})
	if !ok {
		respond.Error(w, h.Log, "leads.stats", leadpolicy.ErrForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	stats, err := h.Store.GetStats(ctx, q)
	if err != nil {
		respond.Error(w, h.Log, "leads.stats", err)
		return
	}
	respond.OK(w, "", stats)
}

func (h *Handler) leadID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "leadID"))
	if err != nil {
		respond.BadRequest(w, "Invalid lead id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
