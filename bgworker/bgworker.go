// Package bgworker runs short background jobs on a shared, bounded pool.
package bgworker

import (
	"context"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/llmtrace/envutil"
	"github.com/amp-labs/llmtrace/lazy"
)

const defaultWorkerCount = 10

// workerPool is created on first use; BACKGROUND_WORKER_COUNT sets its size.
var workerPool = lazy.NewCtx[pond.Pool](func(ctx context.Context) pond.Pool { //nolint:gochecknoglobals
	count := envutil.Int(ctx, "BACKGROUND_WORKER_COUNT",
		envutil.Default(defaultWorkerCount)).ValueOrElse(defaultWorkerCount)

	if count <= 0 {
		count = defaultWorkerCount
	}

	slog.Debug("Initializing background worker pool", "count", count)

	return pond.NewPool(count)
})

// Submit submits a function to the background worker pool.
// It returns a Task that can be used to wait for the function to complete.
func Submit(ctx context.Context, f func()) pond.Task { //nolint:ireturn
	return workerPool.Get(ctx).Submit(f)
}

// Go submits a function to the background worker pool. It returns immediately.
// It returns an error if the pool is stopped.
func Go(ctx context.Context, f func()) error {
	return workerPool.Get(ctx).Go(f)
}

// Stop waits for queued jobs and stops the pool. Jobs submitted afterwards fail.
// It does nothing if the pool was never used.
func Stop() {
	if !workerPool.Initialized() {
		return
	}

	slog.Debug("Stopping background worker pool")
	workerPool.Get(context.Background()).StopAndWait()
	slog.Debug("Background worker pool stopped")
}
