// internal/app/features/leads/routes.go
package leads

import "github.com/go-chi/chi/v5"

// Routes returns the lead subrouter; mounted under /leads behind the
// signed-in middleware. Fine-grained authorization happens in the handlers,
// where the lead being touched is known.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/stats", h.ServeStats)

	r.Post("/bulk/assign-agent", h.ServeBulkAssignAgent)
	r.Post("/bulk/unassign-agent", h.ServeBulkUnassignAgent)
	r.Post("/bulk/delete", h.ServeBulkDelete)

	r.Get("/{leadID}", h.ServeGet)
	r.Put("/{leadID}", h.ServeUpdate)
	r.Delete("/{leadID}", h.ServeDelete)
	r.Post("/{leadID}/status", h.ServeSetStatus)
	r.Post("/{leadID}/comments", h.ServeAddComment)
	r.Post("/{leadID}/documents", h.ServeAddDocument)

	r.Get("/{leadID}/brokers", h.ServeListBrokers)
	r.Post("/{leadID}/brokers/{brokerID}", h.ServeAssignBroker)
	r.Delete("/{leadID}/brokers/{brokerID}", h.ServeUnassignBroker)
	return r
}
