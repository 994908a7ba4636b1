package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openarchive/statspipe/pkg/export"
	"github.com/openarchive/statspipe/pkg/observability"
)

// ExportRunner is the export entry point the task drives.
type ExportRunner interface {
	Run(ctx context.Context, opts export.RunOptions) error
}

// ReconcileRunner is the reconciliation entry point the task drives.
type ReconcileRunner interface {
	Reconcile(ctx context.Context, start, end *time.Time) error
}

// ExportTask runs the analytics export with the deployment's enable gate and
// an optional bounded fixed-delay retry. Retrying is safe: a re-run resumes
// from the bookmark and the sink deduplicates replayed events.
type ExportTask struct {
	runner     ExportRunner
	enabled    bool
	retryCount int
	retryDelay time.Duration
	logger     *observability.Logger

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExportTask creates the export task. retryCount and retryDelay only
// apply to runs that ask for retries.
func NewExportTask(runner ExportRunner, enabled bool, retryCount int, retryDelay time.Duration, logger *observability.Logger) *ExportTask {
	return &ExportTask{
		runner:     runner,
		enabled:    enabled,
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Run executes one export run. Disabled deployments return immediately.
// Failures are only retried when the caller asks for it; a plain run makes a
// single attempt and surfaces the error.
func (t *ExportTask) Run(ctx context.Context, opts export.RunOptions, retry bool) error {
	runID := uuid.NewString()
	logger := t.logger.WithFields(map[string]interface{}{
		"task":   "export",
		"run_id": runID,
	})

	if !t.enabled {
		logger.Debug("export is disabled, skipping run")
		return nil
	}

	retries := 0
	if retry {
		retries = t.retryCount
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   t.retryDelay.String(),
			}).Warn("retrying export run")
			if err := t.sleep(ctx, t.retryDelay); err != nil {
				return err
			}
		}

		lastErr = t.runner.Run(ctx, opts)
		if lastErr == nil {
			return nil
		}
		logger.WithError(lastErr).Error("export run failed")
	}

	if !retry {
		return lastErr
	}
	return fmt.Errorf("export failed after %d attempts: %w", retries+1, lastErr)
}

// ReconcileTask runs the statistics reconciliation. It carries no retry: the
// next scheduled run re-derives its window from the bookmark history and
// covers whatever a failed run left behind.
type ReconcileTask struct {
	runner ReconcileRunner
	logger *observability.Logger
}

// NewReconcileTask creates the reconciliation task.
func NewReconcileTask(runner ReconcileRunner, logger *observability.Logger) *ReconcileTask {
	return &ReconcileTask{runner: runner, logger: logger}
}

// Run executes one reconciliation run over the given window. Both bounds nil
// derives the window from bookmark history.
func (t *ReconcileTask) Run(ctx context.Context, start, end *time.Time) error {
	runID := uuid.NewString()
	logger := t.logger.WithFields(map[string]interface{}{
		"task":   "reconcile",
		"run_id": runID,
	})

	if err := t.runner.Reconcile(ctx, start, end); err != nil {
		logger.WithError(err).Error("reconciliation run failed")
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
