package watch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(path string) pending {
	return pending{Event: Event{Op: OpChange, Path: path}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, p := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(item(p)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Event.Path)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_SignalsAvailability(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(item("a"))
	q.Enqueue(item("b"))

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no signal after enqueue")
	}

	// Signals coalesce
	select {
	case <-q.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(item("late")), "enqueue after close should return false")
	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("close did not wake waiters")
	}
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Enqueue(item(fmt.Sprintf("%d/%d", i, j)))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}
