// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user endpoints. Reads and creation are open; /me and
// self-service changes need a session.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Post("/create", h.HandleCreate)
	r.Get("/{id}", h.ServeUser)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSession)
		pr.Get("/me", h.ServeMe)
		pr.Get("/me/logins", h.ServeMyLogins)
		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
	})

	return r
}
