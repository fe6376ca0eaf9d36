// internal/app/features/users/handler.go
package users

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/taskspace/internal/app/services/accounts"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/normalize"
	"github.com/dalemusser/taskspace/internal/app/system/paging"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// recentLogins is how many sign-ins /users/me/logins returns.
const recentLogins = 20

// LoginHistory reads and clears a user's sign-in records.
type LoginHistory interface {
	ListRecent(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.LoginRecord, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Handler serves the user resource. Every user in a response is sanitized.
type Handler struct {
	Accounts *accounts.Service
	Logins   LoginHistory
	Log      *zap.Logger
}

func NewHandler(svc *accounts.Service, logins LoginHistory, logger *zap.Logger) *Handler {
	return &Handler{Accounts: svc, Logins: logins, Log: logger}
}

// ServeList handles GET /users?page=&limit=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, total, err := h.Accounts.List(ctx, p)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	out := make([]models.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	respond.JSON(w, http.StatusOK, paging.Summary("user", p, total), out)
}

// ServeMe handles GET /users/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.Unauthorized, "Unauthorized"))
		return
	}
	h.serveOne(w, r, su.ID)
}

// ServeMyLogins handles GET /users/me/logins: the caller's recent sign-ins,
// newest first.
func (h *Handler) ServeMyLogins(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.Unauthorized, "Unauthorized"))
		return
	}
	uid, err := normalize.ObjectID(su.ID)
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidRequest, "Invalid user id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	recs, err := h.Logins.ListRecent(ctx, uid, recentLogins)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(apperr.Internal, "Failed to fetch login history", err))
		return
	}
	respond.JSON(w, http.StatusOK, "Login history fetched successfully", recs)
}

// ServeUser handles GET /users/{id}.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	h.serveOne(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) serveOne(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Accounts.Get(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "User fetched successfully", u.Public())
}

// HandleCreate handles POST /users/create. Unlike registration it does not
// sign anyone in.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Accounts.CreateUser(ctx, in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/create")+"/"+u.ID.Hex())
	respond.JSON(w, http.StatusCreated, "User created successfully", u.Public())
}

// HandleUpdate handles PUT /users/{id}: a user changing their own password.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.Unauthorized, "Unauthorized"))
		return
	}
	id := chi.URLParam(r, "id")

	var in accounts.ChangePasswordInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, su.ID, id, in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	u, err := h.Accounts.Get(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "User updated successfully", u.Public())
}

// HandleDelete handles DELETE /users/{id}: a user deleting their own account.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.Unauthorized, "Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Accounts.Delete(ctx, su.ID, id); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	// History goes with the account; a leftover expires by TTL anyway.
	if uid, err := normalize.ObjectID(id); err == nil {
		if _, err := h.Logins.DeleteByUser(ctx, uid); err != nil {
			h.Log.Warn("login history cleanup failed", zap.String("user_id", uid.Hex()), zap.Error(err))
		}
	}
	respond.JSON(w, http.StatusOK, "User deleted successfully", nil)
}
