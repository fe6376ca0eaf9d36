// internal/app/system/workers/reconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/taskspace/internal/app/services/membership"
	"go.uber.org/zap"
)

// Reconciler runs one membership repair pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (membership.Report, error)
}

// MembershipReconciler is a background worker that periodically repairs
// users' workspace lists against the workspace rosters.
type MembershipReconciler struct {
	svc      Reconciler
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMembershipReconciler creates a new reconciliation worker.
//
// Parameters:
//   - svc: the membership service (or anything that can reconcile)
//   - logger: zap logger for logging
//   - interval: how often to run a pass (e.g., 1 hour)
//   - timeout: upper bound for a single pass
func NewMembershipReconciler(svc Reconciler, logger *zap.Logger, interval, timeout time.Duration) *MembershipReconciler {
	return &MembershipReconciler{
		svc:      svc,
		log:      logger,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background reconciliation loop.
func (w *MembershipReconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("membership reconciler started",
		zap.Duration("interval", w.interval),
		zap.Duration("timeout", w.timeout))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once.
func (w *MembershipReconciler) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("membership reconciler stopped")
	})
}

func (w *MembershipReconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single pass. A pass in flight is cancelled by Stop.
func (w *MembershipReconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, err := w.svc.Reconcile(ctx)
	if err != nil {
		w.log.Error("membership reconciliation failed", zap.Error(err))
		return
	}

	w.log.Debug("membership reconciliation pass",
		zap.Int("users", rep.UsersScanned),
		zap.Int("workspaces", rep.WorkspacesScanned),
		zap.Int("stale_removed", rep.StaleRemoved),
		zap.Int("missing_added", rep.MissingAdded))
}
