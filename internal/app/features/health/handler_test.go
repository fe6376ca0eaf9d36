package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskspace/internal/app/features/health"
	"github.com/dalemusser/taskspace/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context, *readpref.ReadPref) error { return p.err }

type body struct {
	Message string `json:"message"`
	Data    struct {
		Status     string `json:"status"`
		Users      string `json:"users"`
		Workspaces string `json:"workspaces"`
	} `json:"data"`
}

func serve(t *testing.T, users, workspaces health.Pinger) (*httptest.ResponseRecorder, body) {
	t.Helper()
	h := health.NewHandler(users, workspaces, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	var b body
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, b
}

func TestServe_BothConnected(t *testing.T) {
	rec, b := serve(t, fakePinger{}, fakePinger{})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	if b.Data.Status != "ok" || b.Data.Users != "connected" || b.Data.Workspaces != "connected" {
		t.Errorf("unexpected data: %+v", b.Data)
	}
}

func TestServe_WorkspacesDown(t *testing.T) {
	rec, b := serve(t, fakePinger{}, fakePinger{err: errors.New("no reachable servers")})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if b.Message != "Database unavailable" {
		t.Errorf("message: got %q", b.Message)
	}
	if b.Data.Users != "connected" || b.Data.Workspaces != "disconnected" {
		t.Errorf("unexpected data: %+v", b.Data)
	}
}

func TestServe_RealDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := db.Client()

	rec, b := serve(t, client, client)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if b.Data.Status != "ok" {
		t.Errorf("status: got %q, want %q", b.Data.Status, "ok")
	}
}

func TestRoutes(t *testing.T) {
	router := health.Routes(health.NewHandler(fakePinger{}, fakePinger{}, zap.NewNop()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
