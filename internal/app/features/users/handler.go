// internal/app/features/users/handler.go
package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
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

// Handler serves the admin account-management endpoints: provisioning staff
// accounts, approving pending ones, and benching agents. Only admins reach
// these routes; the router enforces that before the handler runs.
type Handler struct {
	Users *userstore.Store
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Audit: auditLog, Log: logger}
}

type userPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

/* ---------------------------------- list ---------------------------------- */

// ServeList handles GET /users. Supports ?role= and ?status= narrowing plus
// paging.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	filter := bson.M{}
	if role := query.Get(r, "role"); role != "" && authz.ValidRole(role) {
		filter["role"] = strings.ToLower(role)
	}
	switch status := query.Get(r, "status"); status {
	case models.UserStatusApproved, models.UserStatusPending, models.UserStatusDisabled:
		filter["status"] = status
	}

	page := paging.Parse(r)
	users, total, err := h.Users.List(ctx, filter, page)
	if err != nil {
		respond.Error(w, h.Log, "users.list", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"users":  users,
		"paging": paging.NewMeta(page, total),
	})
}

/* --------------------------------- create --------------------------------- */

// ServeCreate handles POST /users. New accounts start pending and inactive
// until an admin approves them.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var p userPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	if p.FullName == "" || p.Email == "" {
		respond.BadRequest(w, "Full name and email are required.")
		return
	}
	if len(p.Password) < 8 {
		respond.BadRequest(w, "Password must be at least 8 characters.")
		return
	}
	if !authz.ValidRole(p.Role) {
		respond.BadRequest(w, "Unknown role.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := h.Users.Create(ctx, models.User{
		FullName: p.FullName,
		Email:    p.Email,
		Role:     p.Role,
	}, p.Password)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respond.Fail(w, http.StatusConflict, err.Error())
			return
		}
		respond.Error(w, h.Log, "users.create", err)
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.UserCreated(ctx, r, actorID, created.ID, created.Email, created.Role)
	respond.Created(w, "User created.", created)
}

/* --------------------------------- status --------------------------------- */

// ServeApprove handles POST /users/{userID}/approve: marks the account
// approved and active in one step so a fresh agent can take leads
// immediately.
func (h *Handler) ServeApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.SetStatus(ctx, id, models.UserStatusApproved); err != nil {
		h.statusErr(w, "users.approve", err)
		return
	}
	if err := h.Users.SetActive(ctx, id, true); err != nil {
		h.statusErr(w, "users.approve", err)
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.UserStatusChanged(ctx, r, actorID, id, models.UserStatusApproved)
	respond.OK(w, "User approved.", nil)
}

// ServeSetStatus handles POST /users/{userID}/status with {"status":...}.
func (h *Handler) ServeSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var p struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	switch p.Status {
	case models.UserStatusApproved, models.UserStatusPending, models.UserStatusDisabled:
	default:
		respond.BadRequest(w, "Unknown status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.SetStatus(ctx, id, p.Status); err != nil {
		h.statusErr(w, "users.set_status", err)
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.UserStatusChanged(ctx, r, actorID, id, p.Status)
	respond.OK(w, "User updated.", nil)
}

// ServeSetActive handles POST /users/{userID}/active with {"is_active":bool}.
// Deactivating an agent takes them out of the eligible pool without touching
// their existing lead assignments.
func (h *Handler) ServeSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
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

	if err := h.Users.SetActive(ctx, id, *p.IsActive); err != nil {
		h.statusErr(w, "users.set_active", err)
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.Audit.UserActiveChanged(ctx, r, actorID, id, *p.IsActive)
	respond.OK(w, "User updated.", nil)
}

/* --------------------------------- helpers --------------------------------- */

func (h *Handler) statusErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, userstore.ErrNotFound) {
		respond.Fail(w, http.StatusNotFound, "User not found.")
		return
	}
	respond.Error(w, h.Log, op, err)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		respond.BadRequest(w, "Invalid user id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
