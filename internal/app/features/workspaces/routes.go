// internal/app/features/workspaces/routes.go
package workspaces

import (
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all workspace routes. Every route requires a session.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSession)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)

	// JOIN - any signed-in user holding the code
	r.Post("/join/{inviteCode}", h.HandleJoin)

	r.Get("/{id}", h.ServeWorkspace)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)

	// REMOVE MEMBER - admin only, enforced atomically by the store
	r.Patch("/{id}/remove/{userId}", h.HandleRemoveMember)

	return r
}
