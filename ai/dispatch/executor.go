package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// runExecutor drains one provider queue. Exactly one task per queue is in
// flight at a time; a task failure never stops the loop.
func (d *Dispatcher) runExecutor(ctx context.Context, q *providerQueue, p Provider) {
	var limiter *rate.Limiter
	if p.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.RateLimit), 1)
	}

	slog.Debug("dispatch: executor started", "provider", q.provider)
	for {
		task := q.dequeueNext()
		if task == nil {
			slog.Debug("dispatch: executor stopped", "provider", q.provider)
			return
		}
		d.execute(ctx, q, p, limiter, task)
	}
}

// execute runs a single task to a terminal status. The single-flight slot is
// released unconditionally, and a panicking backend is recorded as a failure
// instead of taking the executor down.
func (d *Dispatcher) execute(ctx context.Context, q *providerQueue, p Provider, limiter *rate.Limiter, task *Task) {
	defer q.taskDone()
	defer func() {
		if r := recover(); r != nil {
			d.store.fail(task.ID, ErrorKindBackend, fmt.Sprintf("backend panic: %v", r))
			d.metrics.taskFinished(task.Provider, StatusFailed, 0)
			slog.Error("dispatch: recovered from backend panic",
				"task_id", task.ID,
				"provider", task.Provider,
				"panic", r,
			)
		}
	}()

	d.store.markRunning(task.ID)
	d.metrics.taskStarted(task.Provider)

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			d.store.fail(task.ID, ErrorKindBackend, err.Error())
			d.metrics.taskFinished(task.Provider, StatusFailed, 0)
			return
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	content, stats, err := p.Client.Chat(callCtx, task.Model, task.Payload.Messages, task.Options)
	duration := time.Since(started)

	if err != nil {
		kind := ErrorKindBackend
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = ErrorKindTimeout
		}
		d.store.fail(task.ID, kind, err.Error())
		d.metrics.taskFinished(task.Provider, StatusFailed, duration)
		slog.Warn("dispatch: task failed",
			"task_id", task.ID,
			"provider", task.Provider,
			"model", task.Model,
			"kind", kind,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}

	d.store.complete(task.ID, content, stats)
	d.metrics.taskFinished(task.Provider, StatusSucceeded, duration)
	slog.Debug("dispatch: task succeeded",
		"task_id", task.ID,
		"provider", task.Provider,
		"model", task.Model,
		"duration_ms", duration.Milliseconds(),
	)
}
