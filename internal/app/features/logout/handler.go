// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

// HandleLogout handles POST /auth/logout. Sessions are stateless, so
// logging out only tells the client to drop its cookie. No session is
// required.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Log.Info("user logged out", zap.String("user_id", u.ID))
	}
	h.SessionMgr.SignOut(w)
	respond.JSON(w, http.StatusOK, "Logged out successfully", nil)
}
