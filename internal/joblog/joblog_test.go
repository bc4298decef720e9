package joblog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndEntries(t *testing.T) {
	l := New(10)
	l.Append("job-1", "info", "starting", nil)
	l.Append("job-1", "warn", "retrying", map[string]any{"attempt": 1})
	l.Append("job-2", "info", "other job", nil)

	entries := l.Entries("job-1")
	require.Len(t, entries, 2)
	assert.Equal(t, "starting", entries[0].Message)
	assert.Equal(t, "retrying", entries[1].Message)
	assert.Equal(t, 1, entries[1].Details["attempt"])

	assert.Len(t, l.Entries("job-2"), 1)
	assert.Nil(t, l.Entries("unknown"))
}

func TestRingEvictsOldest(t *testing.T) {
	l := New(3)
	for i := 0; i < 5; i++ {
		l.Append("job-1", "info", fmt.Sprintf("entry %d", i), nil)
	}

	entries := l.Entries("job-1")
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 2", entries[0].Message)
	assert.Equal(t, "entry 4", entries[2].Message)
}

func TestSubscribeReceivesNewEntries(t *testing.T) {
	l := New(10)
	ch, unsub := l.Subscribe("job-1")
	defer unsub()

	l.Append("job-1", "info", "hello", nil)

	entry := <-ch
	assert.Equal(t, "hello", entry.Message)
}

func TestSubscribeBeforeFirstAppendIsSafe(t *testing.T) {
	l := New(10)
	ch, unsub := l.Subscribe("job-1")
	defer unsub()

	l.Append("job-1", "info", "first", nil)
	assert.Equal(t, "first", (<-ch).Message)
}

func TestSlowSubscriberDropsEntriesWithoutBlocking(t *testing.T) {
	l := New(1000)
	ch, unsub := l.Subscribe("job-1")
	defer unsub()

	// Overrun the subscriber channel; Append must never block.
	for i := 0; i < subscriberBuffer+50; i++ {
		l.Append("job-1", "info", fmt.Sprintf("entry %d", i), nil)
	}

	assert.Len(t, ch, subscriberBuffer)
	assert.Len(t, l.Entries("job-1"), subscriberBuffer+50, "ring keeps everything the subscriber missed")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	l := New(10)
	ch, unsub := l.Subscribe("job-1")
	unsub()

	_, open := <-ch
	assert.False(t, open)

	// Appending after unsubscribe must not panic.
	l.Append("job-1", "info", "still fine", nil)
}

func TestAppendRacingUnsubscribeNeverPanics(t *testing.T) {
	// A log-stream client disconnecting while the runner is logging closes
	// the subscriber channel; the append side must never send on it after.
	l := New(10)

	var wg sync.WaitGroup
	for i := 0; i < 2000; i++ {
		_, unsub := l.Subscribe("job-1")
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Append("job-1", "info", "tick", nil)
		}()
		go func() {
			defer wg.Done()
			unsub()
		}()
	}
	wg.Wait()
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	l := New(10)
	_, unsub := l.Subscribe("job-1")
	unsub()
	unsub()
}

func TestRemoveClosesSubscribers(t *testing.T) {
	l := New(10)
	ch, unsub := l.Subscribe("job-1")
	l.Append("job-1", "info", "hi", nil)
	l.Remove("job-1")

	// Drain the delivered entry, then observe the close.
	assert.Equal(t, "hi", (<-ch).Message)
	_, open := <-ch
	assert.False(t, open)

	assert.Nil(t, l.Entries("job-1"))

	// Unsubscribing after removal must not panic.
	unsub()
}

func TestRemoveUnknownJobIsNoop(t *testing.T) {
	l := New(10)
	l.Remove("never-existed")
}
