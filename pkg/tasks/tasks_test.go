package tasks

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/openarchive/statspipe/pkg/export"
	"github.com/openarchive/statspipe/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	calls    int
	failures int
}

func (f *fakeExporter) Run(ctx context.Context, opts export.RunOptions) error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("sink unavailable")
	}
	return nil
}

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, start, end *time.Time) error {
	f.calls++
	return f.err
}

func newExportTask(runner ExportRunner, enabled bool, retries int) (*ExportTask, *[]time.Duration) {
	task := NewExportTask(runner, enabled, retries, 10*time.Minute, observability.NewLogger(observability.ErrorLevel, io.Discard))
	var delays []time.Duration
	task.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return task, &delays
}

func TestExportTask_DisabledDoesNothing(t *testing.T) {
	runner := &fakeExporter{}
	task, _ := newExportTask(runner, false, 3)

	require.NoError(t, task.Run(context.Background(), export.RunOptions{UpdateBookmark: true}, true))
	assert.Zero(t, runner.calls)
}

func TestExportTask_SucceedsFirstAttempt(t *testing.T) {
	runner := &fakeExporter{}
	task, delays := newExportTask(runner, true, 3)

	require.NoError(t, task.Run(context.Background(), export.RunOptions{UpdateBookmark: true}, false))
	assert.Equal(t, 1, runner.calls)
	assert.Empty(t, *delays)
}

func TestExportTask_SingleAttemptWithoutRetry(t *testing.T) {
	runner := &fakeExporter{failures: 10}
	task, delays := newExportTask(runner, true, 3)

	err := task.Run(context.Background(), export.RunOptions{UpdateBookmark: true}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink unavailable")
	assert.NotContains(t, err.Error(), "attempts")
	assert.Equal(t, 1, runner.calls)
	assert.Empty(t, *delays)
}

func TestExportTask_RetriesWithFixedDelay(t *testing.T) {
	runner := &fakeExporter{failures: 2}
	task, delays := newExportTask(runner, true, 3)

	require.NoError(t, task.Run(context.Background(), export.RunOptions{UpdateBookmark: true}, true))
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, []time.Duration{10 * time.Minute, 10 * time.Minute}, *delays)
}

func TestExportTask_GivesUpAfterRetryBudget(t *testing.T) {
	runner := &fakeExporter{failures: 10}
	task, _ := newExportTask(runner, true, 2)

	err := task.Run(context.Background(), export.RunOptions{UpdateBookmark: true}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, runner.calls)
}

func TestExportTask_CancellationStopsRetrying(t *testing.T) {
	runner := &fakeExporter{failures: 10}
	task, _ := newExportTask(runner, true, 5)

	ctx, cancel := context.WithCancel(context.Background())
	task.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := task.Run(ctx, export.RunOptions{UpdateBookmark: true}, true)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runner.calls)
}

func TestReconcileTask_NoRetry(t *testing.T) {
	runner := &fakeReconciler{err: fmt.Errorf("search engine down")}
	task := NewReconcileTask(runner, observability.NewLogger(observability.ErrorLevel, io.Discard))

	err := task.Run(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, runner.calls, "reconciliation failures are left to the next scheduled run")
}

func TestReconcileTask_PassesWindowThrough(t *testing.T) {
	runner := &fakeReconciler{}
	task := NewReconcileTask(runner, observability.NewLogger(observability.ErrorLevel, io.Discard))

	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, task.Run(context.Background(), &start, &end))
	assert.Equal(t, 1, runner.calls)
}
