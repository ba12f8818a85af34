// internal/app/features/agents/handler.go
package agents

import (
	"context"
	"net/http"

	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Handler serves agent listings for the assignment pickers.
type Handler struct {
	Users *userstore.Store
	Leads *leadstore.Store
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, leads *leadstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Leads: leads, Log: logger}
}

// agentView is an agent plus their current working load.
type agentView struct {
	models.User
	LeadCount int64 `json:"lead_count"`
}

// ServeList handles GET /agents. By default only agents eligible to take
// leads are returned; ?all=true includes benched and unapproved ones. Each
// agent carries a count of the leads currently assigned to them.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	eligibleOnly := query.Get(r, "all") != "true"
	page := paging.Parse(r)

	agents, total, err := h.Users.ListAgents(ctx, eligibleOnly, page)
	if err != nil {
		respond.Error(w, h.Log, "agents.list", err)
		return
	}

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		n, err := h.Leads.Count(ctx, bson.M{"assigned_agent": a.ID})
		if err != nil {
			respond.Error(w, h.Log, "agents.list", err)
			return
		}
		views = append(views, agentView{User: a, LeadCount: n})
	}

	respond.OK(w, "", map[string]any{
		"agents": views,
		"paging": paging.NewMeta(page, total),
	})
}

// Routes returns the agents subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	return r
}
