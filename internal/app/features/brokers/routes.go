// internal/app/features/brokers/routes.go
package brokers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the broker subrouter; mounted under /brokers behind the
// signed-in middleware. Listing is open to any signed-in role so agents can
// see where their leads went; requireManage gates the mutating endpoints.
func Routes(h *Handler, requireManage func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/stats", h.ServeStats)
	r.Get("/{brokerID}", h.ServeGet)
	r.Get("/{brokerID}/leads", h.ServeMemberLeads)

	r.Group(func(g chi.Router) {
		g.Use(requireManage)
		g.Post("/", h.ServeCreate)
		g.Put("/{brokerID}", h.ServeUpdate)
		g.Post("/{brokerID}/active", h.ServeSetActive)
		g.Delete("/{brokerID}", h.ServeDelete)
	})
	return r
}
