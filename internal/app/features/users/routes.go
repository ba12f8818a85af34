// internal/app/features/users/routes.go
package users

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the user-management subrouter; mounted under /users inside
// the admin-only group.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Post("/{userID}/approve", h.ServeApprove)
	r.Post("/{userID}/status", h.ServeSetStatus)
	r.Post("/{userID}/active", h.ServeSetActive)
	return r
}
