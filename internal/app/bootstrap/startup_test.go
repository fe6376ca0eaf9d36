package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestStartup_NoReconcilerWhenDisabled(t *testing.T) {
	deps := DBDeps{bg: &background{}}
	if err := Startup(context.Background(), nil, AppConfig{}, deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if deps.bg.reconciler != nil {
		t.Fatal("reconciler started with reconcile_interval=0")
	}
}

func TestShutdown_EmptyDeps(t *testing.T) {
	if err := Shutdown(context.Background(), nil, AppConfig{}, DBDeps{}, testLogger()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestConnectDB_StopsRetryingWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := AppConfig{
		UsersMongoURI:           "mongodb://127.0.0.1:1",
		UsersMongoDatabase:      "u",
		WorkspacesMongoURI:      "mongodb://127.0.0.1:1",
		WorkspacesMongoDatabase: "w",
		BootRetryAttempts:       3,
		BootRetryDelay:          time.Hour,
	}

	done := make(chan error, 1)
	go func() {
		_, err := ConnectDB(ctx, nil, cfg, testLogger())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("ConnectDB kept retrying after cancel")
	}
}
