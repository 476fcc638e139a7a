// Package tasks runs non-blocking writes. The caller continues immediately;
// the outcome is either reported on the notification sink (user-visible
// writes) or only logged (absorbed housekeeping).
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type Runner struct {
	wg      sync.WaitGroup
	sink    notify.Sink
	logger  logging.Logger
	timeout time.Duration
}

// NewRunner returns a runner whose tasks each get timeout to finish
// (0 disables the limit).
func NewRunner(sink notify.Sink, logger logging.Logger, timeout time.Duration) *Runner {
	return &Runner{sink: sink, logger: logger.With("component", "tasks"), timeout: timeout}
}

// Go starts fn in the background. A non-nil error is logged and reported to
// the sink under title. Cancelling ctx after Go returns does not abort fn:
// once issued, a write runs to completion or failure.
func (r *Runner) Go(ctx context.Context, title string, fn func(ctx context.Context) error) {
	r.start(ctx, title, fn, true)
}

// Quiet is Go without the notification: failures are logged at Warn only.
func (r *Runner) Quiet(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.start(ctx, name, fn, false)
}

func (r *Runner) start(ctx context.Context, name string, fn func(ctx context.Context) error, visible bool) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		tctx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(tctx, r.timeout)
			defer cancel()
		}

		err := fn(tctx)
		if err == nil {
			r.logger.Debug(tctx, "task done", "task", name)
			return
		}
		if !visible {
			r.logger.Warn(tctx, "background task failed", "task", name, "error", err)
			return
		}
		r.logger.Error(tctx, "task failed", "task", name, "error", err)
		r.sink.Notify(tctx, notify.FromError(name, err))
	}()
}

// Timeout is the per-task limit, 0 when unlimited.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
