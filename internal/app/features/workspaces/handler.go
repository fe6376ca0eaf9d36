// internal/app/features/workspaces/handler.go
package workspaces

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskspace/internal/app/services/membership"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/paging"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler provides HTTP handlers for workspaces and their membership.
// Every route requires a session; role checks live in the membership service.
type Handler struct {
	Membership *membership.Service
	Log        *zap.Logger
}

// NewHandler creates a new workspaces Handler.
func NewHandler(svc *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{Membership: svc, Log: logger}
}

// ServeList handles GET /workspaces: the caller's workspaces, paged.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, total, err := h.Membership.ListForUser(ctx, su.ID, p)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, paging.Summary("workspace", p, total), list)
}

// ServeWorkspace handles GET /workspaces/{id}.
func (h *Handler) ServeWorkspace(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ws, err := h.Membership.GetForMember(ctx, su.ID, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Workspace fetched successfully", ws)
}

// HandleCreate handles POST /workspaces.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}
	var in membership.CreateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	// Invite-code retries share one budget.
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ws, err := h.Membership.CreateWorkspace(ctx, su.ID, su.Email, in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Workspace created successfully", ws)
}

// HandleUpdate handles PATCH /workspaces/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}
	var in membership.UpdateInput
	if err := respond.DecodeOptional(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ws, err := h.Membership.UpdateWorkspace(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Workspace updated successfully", ws)
}

// HandleDelete handles DELETE /workspaces/{id}. Owner only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Membership.DeleteWorkspace(ctx, su.ID, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Workspace deleted successfully", nil)
}

// HandleJoin handles POST /workspaces/join/{inviteCode}.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ws, err := h.Membership.JoinByInviteCode(ctx, su.ID, su.Email, chi.URLParam(r, "inviteCode"))
	if err != nil {
		respond.Error(w, h.Log, joinStatus(err))
		return
	}
	respond.JSON(w, http.StatusOK, "Joined workspace successfully", ws)
}

// joinStatus serves already-member as 400 rather than 409.
func joinStatus(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.Conflict && ae.Status == 0 {
		return ae.WithStatus(http.StatusBadRequest)
	}
	return err
}

// HandleRemoveMember handles PATCH /workspaces/{id}/remove/{userId}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	su, ok := h.user(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ws, err := h.Membership.RemoveMember(ctx, su.ID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Member removed successfully", ws)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.Unauthorized, "Unauthorized"))
		return nil, false
	}
	return su, true
}
