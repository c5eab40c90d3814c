package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/llm"
)

// ErrTaskNotFound is returned for unknown or already evicted task ids.
var ErrTaskNotFound = errors.New("task not found")

// resultStore holds every non-evicted task, keyed by id. All task state
// mutation goes through the store so snapshots never race the executor's
// terminal write. Terminal results are written exactly once.
type resultStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func newResultStore() *resultStore {
	return &resultStore{
		tasks: make(map[string]*Task),
	}
}

func (s *resultStore) add(t *Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
}

// get returns a snapshot of the task, or ErrTaskNotFound.
func (s *resultStore) get(id string) (TaskView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskView{}, errors.Wrapf(ErrTaskNotFound, "id %s", id)
	}
	return t.view(), nil
}

func (s *resultStore) remove(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

func (s *resultStore) markRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && t.Status == StatusQueued {
		t.Status = StatusRunning
		t.StartedAt = time.Now()
	}
}

func (s *resultStore) complete(id, result string, stats *llm.CallStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusSucceeded
	t.Result = result
	t.Stats = stats
	t.CompletedAt = time.Now()
}

func (s *resultStore) fail(id string, kind ErrorKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.Err = &TaskError{Kind: kind, Message: message}
	t.CompletedAt = time.Now()
}

// sweep evicts terminal tasks whose completion is older than retention.
// Returns the number of evicted tasks.
func (s *resultStore) sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, t := range s.tasks {
		if t.Status.Terminal() && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("dispatch: evicted expired task results", "count", evicted)
	}
	return evicted
}
