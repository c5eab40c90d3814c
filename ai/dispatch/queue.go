package dispatch

import (
	"container/heap"
	"sync"
)

// providerQueue is the ordered collection of queued tasks for one provider,
// plus the single-flight slot. The mutex guards the heap and the running
// slot together so enqueue ordering and the in-flight transition stay atomic
// with respect to each other. Queues never share locks.
type providerQueue struct {
	provider string

	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	running *Task
	closed  bool
}

func newProviderQueue(provider string) *providerQueue {
	q := &providerQueue{provider: provider}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueue inserts a task in priority order and returns immediately. Returns
// false once the queue is closed: nothing will ever dequeue the task, so the
// caller must not hand out its id.
func (q *providerQueue) enqueue(t *Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	heap.Push(&q.pending, t)
	q.mu.Unlock()
	q.cond.Signal()
	return true
}

// dequeueNext blocks until a task is available and the single-flight slot is
// free, then claims the slot and returns the highest-priority, earliest
// enqueued task. Returns nil once the queue is closed.
func (q *providerQueue) dequeueNext() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return nil
		}
		if len(q.pending) > 0 && q.running == nil {
			break
		}
		q.cond.Wait()
	}
	t := heap.Pop(&q.pending).(*Task)
	q.running = t
	return t
}

// taskDone releases the single-flight slot, making the queue eligible to
// dequeue its next task.
func (q *providerQueue) taskDone() {
	q.mu.Lock()
	q.running = nil
	q.mu.Unlock()
	q.cond.Signal()
}

// remove deletes a still-queued task. Returns false if the task is no longer
// in the pending heap (already dequeued or never enqueued here).
func (q *providerQueue) remove(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.pending {
		if t.ID == taskID {
			heap.Remove(&q.pending, i)
			return true
		}
	}
	return false
}

// close wakes all waiters; dequeueNext calls return nil afterwards.
func (q *providerQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// snapshot returns the pending depth and the running task id, if any.
func (q *providerQueue) snapshot() (depth int, runningID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running != nil {
		runningID = q.running.ID
	}
	return len(q.pending), runningID
}

// taskHeap orders tasks by descending priority, then ascending enqueue time,
// then ascending sequence number (strict FIFO within a priority band).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	if !h[i].EnqueuedAt.Equal(h[j].EnqueuedAt) {
		return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
