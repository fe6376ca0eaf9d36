// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/dalemusser/taskspace/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// It applies TIMEOUT_* overrides and, when reconcile_interval is set, starts
// the membership reconciler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts configured from environment",
			zap.Int("overrides", n),
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long))
	}

	if appCfg.ReconcileInterval <= 0 || deps.bg == nil {
		return nil
	}

	svc := newServices(appCfg, deps, logger)
	w := workers.NewMembershipReconciler(svc.membership, logger.Named("reconciler"), appCfg.ReconcileInterval, timeouts.Long())

	deps.bg.mu.Lock()
	deps.bg.reconciler = w
	deps.bg.mu.Unlock()

	w.Start()
	return nil
}
