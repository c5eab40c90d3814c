package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/prompt"
)

// ErrUnknownProvider is returned by Submit when the request names a provider
// without a configured queue. No queue is mutated in that case.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrNotCancelable is returned by Cancel for tasks that already left the
// queued state.
var ErrNotCancelable = errors.New("task is not cancelable")

// ErrStopped is returned by Submit after Stop: the queues are closed and an
// accepted task would never run.
var ErrStopped = errors.New("dispatcher stopped")

// Provider is the per-provider runtime wiring: the backend client plus the
// execution limits for its queue.
type Provider struct {
	Client llm.Client

	// Timeout bounds each backend call. Zero falls back to Config.DefaultTimeout.
	Timeout time.Duration

	// RateLimit caps backend calls per second. Zero means unlimited.
	RateLimit float64
}

// Config tunes the dispatcher.
type Config struct {
	// Retention is how long terminal task results stay readable before the
	// eviction sweep removes them. Zero falls back to one hour.
	Retention time.Duration

	// DefaultTimeout bounds backend calls for providers without their own
	// timeout. Zero falls back to two minutes.
	DefaultTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 2 * time.Minute
	}
}

// SubmitRequest is one fully resolved and prompted completion request.
type SubmitRequest struct {
	Provider string
	Model    string
	Options  llm.Options
	Payload  prompt.Payload
	Priority int
}

// QueueStatus is the externally visible state of one provider queue.
type QueueStatus struct {
	Depth         int    `json:"depth"`
	Running       bool   `json:"running"`
	RunningTaskID string `json:"running_task_id,omitempty"`
}

// Dispatcher owns the provider queues, the executors draining them, and the
// result store. Submission is safe from any number of concurrent callers.
type Dispatcher struct {
	cfg       Config
	providers map[string]Provider
	queues    map[string]*providerQueue
	store     *resultStore
	metrics   *Metrics
	seq       atomic.Uint64
	group     *errgroup.Group
	stopSweep context.CancelFunc
}

// New creates a Dispatcher with one queue per configured provider. Metrics
// may be nil.
func New(providers map[string]Provider, cfg Config, metrics *Metrics) *Dispatcher {
	cfg.applyDefaults()

	queues := make(map[string]*providerQueue, len(providers))
	for name := range providers {
		queues[name] = newProviderQueue(name)
	}

	return &Dispatcher{
		cfg:       cfg,
		providers: providers,
		queues:    queues,
		store:     newResultStore(),
		metrics:   metrics,
	}
}

// Start launches one executor per provider queue and the retention sweep.
// It returns immediately; Stop shuts everything down.
func (d *Dispatcher) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	d.stopSweep = cancel

	group, ctx := errgroup.WithContext(ctx)
	d.group = group

	for name, q := range d.queues {
		group.Go(func() error {
			d.runExecutor(ctx, q, d.providers[name])
			return nil
		})
	}

	group.Go(func() error {
		d.runSweep(sweepCtx)
		return nil
	})

	// Closing the queues unblocks every executor waiting in dequeueNext,
	// both on Stop and when the parent context is canceled.
	group.Go(func() error {
		<-sweepCtx.Done()
		for _, q := range d.queues {
			q.close()
		}
		return nil
	})

	slog.Info("dispatcher started",
		"providers", len(d.queues),
		"retention", d.cfg.Retention,
	)
}

// Stop closes every queue and waits for executors to finish. In-flight
// backend calls run to completion; still-queued tasks are abandoned.
func (d *Dispatcher) Stop() {
	if d.stopSweep != nil {
		d.stopSweep()
	}
	if d.group != nil {
		_ = d.group.Wait()
	}
	slog.Info("dispatcher stopped")
}

// Submit enqueues a resolved request and returns its task id. Fails with
// ErrUnknownProvider before touching any queue.
func (d *Dispatcher) Submit(req SubmitRequest) (string, error) {
	q, ok := d.queues[req.Provider]
	if !ok {
		return "", errors.Wrapf(ErrUnknownProvider, "provider %q", req.Provider)
	}

	task := &Task{
		ID:         shortuuid.New(),
		Provider:   req.Provider,
		Model:      req.Model,
		Options:    req.Options,
		Payload:    req.Payload,
		Priority:   req.Priority,
		EnqueuedAt: time.Now(),
		seq:        d.seq.Add(1),
		Status:     StatusQueued,
	}

	d.store.add(task)
	if !q.enqueue(task) {
		d.store.remove(task.ID)
		return "", errors.Wrapf(ErrStopped, "provider %q", req.Provider)
	}
	d.metrics.taskEnqueued(req.Provider)

	slog.Debug("dispatch: task submitted",
		"task_id", task.ID,
		"provider", task.Provider,
		"model", task.Model,
		"priority", task.Priority,
	)
	return task.ID, nil
}

// Status returns a snapshot of the task, or ErrTaskNotFound for unknown or
// evicted ids.
func (d *Dispatcher) Status(taskID string) (TaskView, error) {
	return d.store.get(taskID)
}

// Cancel removes a still-queued task from its provider queue and records it
// as failed with the canceled kind. Running or terminal tasks are not
// cancelable.
func (d *Dispatcher) Cancel(taskID string) error {
	view, err := d.store.get(taskID)
	if err != nil {
		return err
	}
	if view.Status != StatusQueued {
		return errors.Wrapf(ErrNotCancelable, "task %s is %s", taskID, view.Status)
	}

	q := d.queues[view.Provider]
	if q == nil || !q.remove(taskID) {
		// Lost the race with the executor; the task is running now.
		return errors.Wrapf(ErrNotCancelable, "task %s already dequeued", taskID)
	}

	d.store.fail(taskID, ErrorKindCanceled, "canceled before execution")
	d.metrics.taskCanceled(view.Provider)
	slog.Debug("dispatch: task canceled", "task_id", taskID, "provider", view.Provider)
	return nil
}

// ListStatus snapshots every provider queue.
func (d *Dispatcher) ListStatus() map[string]QueueStatus {
	statuses := make(map[string]QueueStatus, len(d.queues))
	for name, q := range d.queues {
		depth, runningID := q.snapshot()
		statuses[name] = QueueStatus{
			Depth:         depth,
			Running:       runningID != "",
			RunningTaskID: runningID,
		}
	}
	return statuses
}

// runSweep periodically evicts expired terminal results.
func (d *Dispatcher) runSweep(ctx context.Context) {
	interval := d.cfg.Retention / 10
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := d.store.sweep(d.cfg.Retention); evicted > 0 {
				d.metrics.resultsEvicted(evicted)
			}
		}
	}
}
