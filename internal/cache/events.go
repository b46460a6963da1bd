package cache

import (
	"sync"

	"github.com/theuszinp/chatbot/internal/types"
)

const eventLogCapacity = 500

// EventLog keeps the most recent engine events in memory for the
// dashboard's recent-activity view. Older events fall off the ring;
// the durable copy lives in the store.
type EventLog struct {
	events []types.Event
	mu     sync.RWMutex
}

// NewEventLog creates an empty event log
func NewEventLog() *EventLog {
	return &EventLog{
		events: make([]types.Event, 0, eventLogCapacity),
	}
}

// Add appends an event, evicting the oldest once the ring is full
func (l *EventLog) Add(event types.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) >= eventLogCapacity {
		l.events = l.events[1:]
	}
	l.events = append(l.events, event)
}

// Recent returns up to n events, newest first
func (l *EventLog) Recent(n int) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]types.Event, 0, n)
	for i := len(l.events) - 1; i >= len(l.events)-n; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// Size returns the current number of buffered events
func (l *EventLog) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
