package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/openarchive/statspipe/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery and error logging.
// A positive timeout bounds the run; zero leaves the context untouched.
//
// Use this instead of a bare `go func()` so a panicking task cannot crash
// the daemon.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx := parentCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}
