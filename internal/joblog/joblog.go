// Package joblog keeps a bounded in-memory log per job with live fan-out to
// subscribers, backing the job log streaming endpoint.
package joblog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// DefaultCapacity bounds each job's ring buffer.
const DefaultCapacity = 500

// subscriberBuffer is each subscriber channel's capacity; entries beyond it
// are dropped for that subscriber rather than blocking the appender.
const subscriberBuffer = 64

// Logger owns the per-job ring buffers.
type Logger struct {
	mu       sync.RWMutex
	capacity int
	jobs     map[string]*buffer
}

type buffer struct {
	entries []model.JobLogEntry // ring storage
	start   int
	count   int
	subs    map[int]chan model.JobLogEntry
	nextSub int
}

func New(capacity int) *Logger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Logger{
		capacity: capacity,
		jobs:     map[string]*buffer{},
	}
}

// Append records an entry for a job, evicting the oldest entry once the
// buffer is full, and fans it out to live subscribers without blocking.
func (l *Logger) Append(jobID, level, message string, details map[string]any) {
	entry := model.JobLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Details:   details,
	}

	l.mu.Lock()
	b := l.buffer(jobID)
	if b.count < l.capacity {
		b.entries[(b.start+b.count)%l.capacity] = entry
		b.count++
	} else {
		b.entries[b.start] = entry
		b.start = (b.start + 1) % l.capacity
	}
	// Fan out while still holding the lock: Unsubscribe and Remove close
	// channels under the same lock, so a send can never race a close. The
	// sends never block, so holding the lock here is cheap.
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
			// Slow subscriber; it misses this entry.
		}
	}
	l.mu.Unlock()

	zap.L().Debug("job log", zap.String("job_id", jobID),
		zap.String("level", level), zap.String("message", message))
}

// Entries returns a copy of the buffered entries in append order.
func (l *Logger) Entries(jobID string) []model.JobLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.jobs[jobID]
	if !ok {
		return nil
	}
	out := make([]model.JobLogEntry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%l.capacity]
	}
	return out
}

// Subscribe returns a channel of future entries for the job and a cancel
// function. Subscribing is safe before the job has logged anything.
func (l *Logger) Subscribe(jobID string) (<-chan model.JobLogEntry, func()) {
	l.mu.Lock()
	b := l.buffer(jobID)
	id := b.nextSub
	b.nextSub++
	ch := make(chan model.JobLogEntry, subscriberBuffer)
	b.subs[id] = ch
	l.mu.Unlock()

	unsubscribe := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// The buffer may already be gone if the job was removed.
		if b, ok := l.jobs[jobID]; ok {
			if ch, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		}
	}
	return ch, unsubscribe
}

// Remove drops a job's buffer and closes any remaining subscriber channels.
func (l *Logger) Remove(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.jobs[jobID]
	if !ok {
		return
	}
	for _, ch := range b.subs {
		close(ch)
	}
	delete(l.jobs, jobID)
}

// buffer returns the job's buffer, creating it if needed. Caller holds mu.
func (l *Logger) buffer(jobID string) *buffer {
	b, ok := l.jobs[jobID]
	if !ok {
		b = &buffer{
			entries: make([]model.JobLogEntry, l.capacity),
			subs:    map[int]chan model.JobLogEntry{},
		}
		l.jobs[jobID] = b
	}
	return b
}
