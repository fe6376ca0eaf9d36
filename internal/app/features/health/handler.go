package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskspace/internal/app/system/respond"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Users      Pinger
	Workspaces Pinger
	Log        *zap.Logger
}

// NewHandler constructs a health Handler with the two store clients.
func NewHandler(users, workspaces Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		Workspaces: workspaces,
		Log:        logger,
	}
}

// healthData is the data field of the health response.
type healthData struct {
	Status     string `json:"status"`
	Users      string `json:"users"`
	Workspaces string `json:"workspaces"`
	Error      string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "message":"Healthy", "data":{"status":"ok","users":"connected","workspaces":"connected"}, "error":null }
//
// If either store fails its ping: 503 with that side marked "disconnected".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	data := healthData{Status: "ok", Users: "connected", Workspaces: "connected"}

	if err := h.Users.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: users mongo ping failed", zap.Error(err))
		data.Status, data.Users, data.Error = "error", "disconnected", err.Error()
	}
	if err := h.Workspaces.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: workspaces mongo ping failed", zap.Error(err))
		data.Status, data.Workspaces = "error", "disconnected"
		if data.Error == "" {
			data.Error = err.Error()
		}
	}

	if data.Status != "ok" {
		respond.JSON(w, http.StatusServiceUnavailable, "Database unavailable", data)
		return
	}
	respond.JSON(w, http.StatusOK, "Healthy", data)
}
