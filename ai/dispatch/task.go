// Package dispatch implements asynchronous execution of completion requests
// against model providers. Each provider owns one priority-ordered,
// single-flight queue; queues are fully independent of each other. Results
// are kept in memory for a bounded retention window.
package dispatch

import (
	"time"

	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/prompt"
)

// Status is the lifecycle state of a task.
// Transitions: queued -> running -> succeeded | failed. No transition skips
// running (except explicit cancellation of a still-queued task) and no
// terminal state transitions again.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrorKind classifies a task failure.
type ErrorKind string

const (
	// ErrorKindBackend covers connection failures and non-2xx responses.
	ErrorKindBackend ErrorKind = "backend_error"

	// ErrorKindTimeout marks a backend call that exceeded its configured
	// maximum wait.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindCanceled marks a task removed from its queue before running.
	ErrorKindCanceled ErrorKind = "canceled"
)

// TaskError is the structured error recorded on a failed task.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Task is one unit of dispatch work. Provider, model, options, and payload
// are immutable once enqueued; status and result fields are guarded by the
// result store and written by the executor exactly once on the terminal
// transition.
type Task struct {
	ID         string
	Provider   string
	Model      string
	Options    llm.Options
	Payload    prompt.Payload
	Priority   int
	EnqueuedAt time.Time

	// seq breaks EnqueuedAt ties so FIFO order within a priority band is
	// strict even at clock resolution.
	seq uint64

	Status      Status
	Result      string
	Stats       *llm.CallStats
	Err         *TaskError
	StartedAt   time.Time
	CompletedAt time.Time
}

// TaskView is an immutable snapshot of a task, safe to read without holding
// any lock.
type TaskView struct {
	ID          string         `json:"id"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Priority    int            `json:"priority"`
	Status      Status         `json:"status"`
	Result      string         `json:"result,omitempty"`
	Stats       *llm.CallStats `json:"stats,omitempty"`
	Err         *TaskError     `json:"error,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
	StartedAt   time.Time      `json:"started_at,omitzero"`
	CompletedAt time.Time      `json:"completed_at,omitzero"`
}

// view copies the task into a snapshot. Caller must hold the store lock.
func (t *Task) view() TaskView {
	v := TaskView{
		ID:          t.ID,
		Provider:    t.Provider,
		Model:       t.Model,
		Priority:    t.Priority,
		Status:      t.Status,
		Result:      t.Result,
		EnqueuedAt:  t.EnqueuedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.Stats != nil {
		stats := *t.Stats
		v.Stats = &stats
	}
	if t.Err != nil {
		taskErr := *t.Err
		v.Err = &taskErr
	}
	return v
}
