// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskspace/internal/app/services/accounts"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/ratelimit"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LoginRecorder keeps the sign-in history.
type LoginRecorder interface {
	CreateFrom(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) error
}

// Handler serves registration and login. Both set the session cookie.
type Handler struct {
	Accounts   *accounts.Service
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter // nil disables throttling
	Logins     LoginRecorder
	Log        *zap.Logger
}

func NewHandler(svc *accounts.Service, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, logins LoginRecorder, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts:   svc,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Logins:     logins,
		Log:        logger,
	}
}

// HandleRegister handles POST /auth/register.
//
//	201 + sanitized user + session cookie
//	409 when the email is already in use
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	// Hashing dominates; give it the medium budget.
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Accounts.Register(ctx, in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if err := h.SessionMgr.SignIn(w, u.ID.Hex(), u.Email); err != nil {
		respond.Error(w, h.Log, apperr.Wrap(apperr.Internal, "Failed to create session", err))
		return
	}

	h.record(ctx, r, u.ID, models.LoginMethodRegister)
	respond.JSON(w, http.StatusCreated, "User registered successfully", u.Public())
}

// HandleLogin handles POST /auth/login.
//
//	200 + sanitized user + session cookie
//	401 for an unknown email or a wrong password alike
//	429 when the client or the account is throttled
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in accounts.LoginInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	if ok, reason := h.Limiter.Check(r, in.Email); !ok {
		h.Log.Warn("login throttled", zap.String("ip", ratelimit.ClientIP(r)))
		respond.Error(w, h.Log, apperr.New(apperr.InvalidRequest, reason).WithStatus(http.StatusTooManyRequests))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Accounts.Login(ctx, in)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if err := h.SessionMgr.SignIn(w, u.ID.Hex(), u.Email); err != nil {
		respond.Error(w, h.Log, apperr.Wrap(apperr.Internal, "Failed to create session", err))
		return
	}

	h.Limiter.ResetEmail(u.Email)
	h.record(ctx, r, u.ID, models.LoginMethodPassword)
	h.Log.Info("user logged in", zap.String("user_id", u.ID.Hex()))
	respond.JSON(w, http.StatusOK, "Logged in successfully", u.Public())
}

// record is best-effort; a failed history write never fails the sign-in.
func (h *Handler) record(ctx context.Context, r *http.Request, userID primitive.ObjectID, method string) {
	if h.Logins == nil {
		return
	}
	if err := h.Logins.CreateFrom(ctx, r, userID, method); err != nil {
		h.Log.Warn("login record write failed", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
}
