package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedTask(id string, priority int, enqueuedAt time.Time, seq uint64) *Task {
	return &Task{
		ID:         id,
		Priority:   priority,
		EnqueuedAt: enqueuedAt,
		seq:        seq,
		Status:     StatusQueued,
	}
}

func TestQueue_PriorityThenFIFO(t *testing.T) {
	q := newProviderQueue("test")
	base := time.Now()

	q.enqueue(queuedTask("low-early", 1, base, 1))
	q.enqueue(queuedTask("high", 9, base.Add(time.Second), 2))
	q.enqueue(queuedTask("low-late", 1, base.Add(2*time.Second), 3))
	q.enqueue(queuedTask("mid", 5, base.Add(3*time.Second), 4))

	var got []string
	for i := 0; i < 4; i++ {
		task := q.dequeueNext()
		require.NotNil(t, task)
		got = append(got, task.ID)
		q.taskDone()
	}

	assert.Equal(t, []string{"high", "mid", "low-early", "low-late"}, got)
}

func TestQueue_SeqBreaksIdenticalTimestamps(t *testing.T) {
	q := newProviderQueue("test")
	now := time.Now()

	q.enqueue(queuedTask("second", 3, now, 2))
	q.enqueue(queuedTask("first", 3, now, 1))
	q.enqueue(queuedTask("third", 3, now, 3))

	for _, want := range []string{"first", "second", "third"} {
		task := q.dequeueNext()
		require.NotNil(t, task)
		assert.Equal(t, want, task.ID)
		q.taskDone()
	}
}

func TestQueue_SingleFlightSlotBlocksDequeue(t *testing.T) {
	q := newProviderQueue("test")
	q.enqueue(queuedTask("a", 0, time.Now(), 1))
	q.enqueue(queuedTask("b", 0, time.Now(), 2))

	first := q.dequeueNext()
	require.NotNil(t, first)

	next := make(chan *Task, 1)
	go func() {
		next <- q.dequeueNext()
	}()

	select {
	case <-next:
		t.Fatal("dequeueNext returned while another task held the slot")
	case <-time.After(30 * time.Millisecond):
	}

	q.taskDone()
	select {
	case task := <-next:
		assert.Equal(t, "b", task.ID)
	case <-time.After(time.Second):
		t.Fatal("dequeueNext did not wake after taskDone")
	}
}

func TestQueue_RemovePreservesRemainingOrder(t *testing.T) {
	q := newProviderQueue("test")
	base := time.Now()
	q.enqueue(queuedTask("a", 5, base, 1))
	q.enqueue(queuedTask("b", 5, base.Add(time.Millisecond), 2))
	q.enqueue(queuedTask("c", 5, base.Add(2*time.Millisecond), 3))

	require.True(t, q.remove("b"))
	assert.False(t, q.remove("b"), "second remove must report missing")

	var got []string
	for i := 0; i < 2; i++ {
		task := q.dequeueNext()
		require.NotNil(t, task)
		got = append(got, task.ID)
		q.taskDone()
	}
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestQueue_EnqueueAfterCloseRejected(t *testing.T) {
	q := newProviderQueue("test")

	assert.True(t, q.enqueue(queuedTask("before", 0, time.Now(), 1)))
	q.close()
	assert.False(t, q.enqueue(queuedTask("after", 0, time.Now(), 2)))

	depth, _ := q.snapshot()
	assert.Equal(t, 1, depth)
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := newProviderQueue("test")

	done := make(chan *Task, 1)
	go func() {
		done <- q.dequeueNext()
	}()

	q.close()
	select {
	case task := <-done:
		assert.Nil(t, task)
	case <-time.After(time.Second):
		t.Fatal("dequeueNext did not return after close")
	}
}
