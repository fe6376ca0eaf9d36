package workers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/taskspace/internal/app/services/membership"
	"github.com/dalemusser/taskspace/internal/app/system/workers"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (c *countingReconciler) Reconcile(ctx context.Context) (membership.Report, error) {
	c.calls.Add(1)
	return membership.Report{StaleRemoved: 1}, c.err
}

func TestMembershipReconciler_RunsOnInterval(t *testing.T) {
	rec := &countingReconciler{}
	w := workers.NewMembershipReconciler(rec, zap.NewNop(), 10*time.Millisecond, time.Second)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for rec.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	if got := rec.calls.Load(); got < 2 {
		t.Fatalf("expected at least 2 passes, got %d", got)
	}

	after := rec.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if rec.calls.Load() != after {
		t.Error("worker kept running after Stop")
	}
}

func TestMembershipReconciler_StopIsIdempotent(t *testing.T) {
	w := workers.NewMembershipReconciler(&countingReconciler{}, zap.NewNop(), time.Hour, time.Second)
	w.Start()
	w.Stop()
	w.Stop()
}

func TestMembershipReconciler_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &countingReconciler{err: errors.New("boom")}
	w := workers.NewMembershipReconciler(rec, zap.New(core), time.Hour, time.Second)

	w.RunOnce()

	if rec.calls.Load() != 1 {
		t.Fatalf("expected 1 pass, got %d", rec.calls.Load())
	}
	if logs.FilterMessage("membership reconciliation failed").Len() != 1 {
		t.Errorf("expected failure to be logged, got %v", logs.All())
	}
}
