// internal/app/features/orders/handler.go
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	orderstore "github.com/dalemusser/leadhub/internal/app/store/orders"
	"github.com/dalemusser/leadhub/internal/app/system/authz"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves lead orders. An order is a request for a batch of leads;
// broker assignments made while fulfilling one carry its id as context.
type Handler struct {
	Store *orderstore.Store
	Log   *zap.Logger
}

func NewHandler(store *orderstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

type orderPayload struct {
	Priority      string               `json:"priority"`
	CountryFilter string               `json:"country_filter"`
	Requests      models.OrderRequests `json:"requests"`
	Notes         string               `json:"notes"`
}

// ServeCreate handles POST /orders.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var p orderPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.BadRequest(w, "Invalid JSON body.")
		return
	}
	total := p.Requests.FTD + p.Requests.Filler + p.Requests.Cold + p.Requests.Live
	if total <= 0 {
		respond.BadRequest(w, "Order must request at least one lead.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, _, actorID, _ := authz.UserCtx(r)
	order := models.Order{
		Requester:     actorID,
		Priority:      p.Priority,
		CountryFilter: p.CountryFilter,
		Requests:      p.Requests,
		Notes:         p.Notes,
	}
	created, err := h.Store.Create(ctx, order)
	if err != nil {
		respond.Error(w, h.Log, "orders.create", err)
		return
	}
	respond.Created(w, "Order created.", created)
}

// ServeList handles GET /orders. Admins and affiliate managers see all
// orders; everyone else sees only their own.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	requester := primitive.NilObjectID
	if !authz.CanManageBrokers(r) {
		_, _, actorID, ok := authz.UserCtx(r)
		if !ok {
			respond.Fail(w, http.StatusForbidden, "You are not allowed to list orders.")
			return
		}
		requester = actorID
	}

	page := paging.Parse(r)
	orders, total, err := h.Store.List(ctx, query.Get(r, "status"), requester, page)
	if err != nil {
		respond.Error(w, h.Log, "orders.list", err)
		return
	}
	respond.OK(w, "", map[string]any{
		"orders": orders,
		"paging": paging.NewMeta(page, total),
	})
}

// ServeGet handles GET /orders/{orderID}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orderID"))
	if err != nil {
		respond.BadRequest(w, "Invalid order id.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	order, err := h.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderstore.ErrNotFound) {
			respond.Fail(w, http.StatusNotFound, "Order not found.")
			return
		}
		respond.Error(w, h.Log, "orders.get", err)
		return
	}
	_, _, actorID, _ := authz.UserCtx(r)
	if !authz.CanManageBrokers(r) && order.Requester != actorID {
		respond.Fail(w, http.StatusNotFound, "Order not found.")
		return
	}
	respond.OK(w, "", order)
}

// ServeSetStatus handles POST /orders/{orderID}/status.
func (h *Handler) ServeSetStatus(w http.ResponseWriter, r *http.Request) {
	if !authz.CanManageBrokers(r) {
		respond.Fail(w, http.StatusForbidden, "You are not allowed to update orders.")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orderID"))
	if err != nil {
		respond.BadRequest(w, "Invalid order id.")
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
	case models.OrderStatusPending, models.OrderStatusFulfilled, models.OrderStatusCancelled:
	default:
		respond.BadRequest(w, "Unknown order status.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Store.SetStatus(ctx, id, p.Status); err != nil {
		if errors.Is(err, orderstore.ErrNotFound) {
			respond.Fail(w, http.StatusNotFound, "Order not found.")
			return
		}
		respond.Error(w, h.Log, "orders.set_status", err)
		return
	}
	respond.OK(w, "Order status updated.", nil)
}

// Routes returns the orders subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeCreate)
	r.Get("/", h.ServeList)
	r.Get("/{orderID}", h.ServeGet)
	r.Post("/{orderID}/status", h.ServeSetStatus)
	return r
}
