// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Shutdown stops background workers and disconnects both MongoDB clients.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.bg != nil {
		deps.bg.mu.Lock()
		w := deps.bg.reconciler
		deps.bg.reconciler = nil
		deps.bg.mu.Unlock()
		if w != nil {
			w.Stop()
		}
	}

	var errs []error
	for _, c := range []struct {
		name   string
		client *mongo.Client
	}{
		{"users", deps.UsersMongoClient},
		{"workspaces", deps.WorkspacesMongoClient},
	} {
		if c.client == nil {
			continue
		}
		logger.Info("disconnecting MongoDB client", zap.String("store", c.name))
		if err := c.client.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.String("store", c.name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
