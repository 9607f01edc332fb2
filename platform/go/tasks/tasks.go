// Package tasks runs best-effort side effects (usage logging, cache
// writes, last-used touches) off the request path. Failures are logged and
// never propagate to the caller.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner spawns detached best-effort work with panic recovery.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner constructs a Runner. Each task gets its own context bounded by
// timeout; zero applies a 10s default.
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		panic("tasks: logger is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{logger: logger, timeout: timeout}
}

// Go runs fn on its own goroutine. The task receives a fresh context
// detached from the originating request so it survives the response.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panic",
					zap.String("task", name),
					zap.Any("panic", rec),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.logger.Warn("background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until all spawned tasks finish. Used by tests and graceful
// shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
