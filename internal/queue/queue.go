package queue

import (
	"time"

	"github.com/theuszinp/chatbot/internal/types"
)

// Entry is one contact's membership in a sector's wait line. Order is
// insertion order, carried by a monotonic sequence id, and is never
// reordered.
type Entry struct {
	Contact    string       `json:"contact"`
	Sector     types.Sector `json:"sector"`
	Seq        uint64       `json:"seq"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
}

// sectorQueue is a single sector's FIFO wait line
type sectorQueue struct {
	sector  types.Sector
	entries []Entry
}

func newSectorQueue(sector types.Sector) *sectorQueue {
	return &sectorQueue{
		sector:  sector,
		entries: make([]Entry, 0),
	}
}

// push appends an entry to the tail
func (q *sectorQueue) push(e Entry) {
	q.entries = append(q.entries, e)
}

// head returns the first entry without removing it
func (q *sectorQueue) head() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// pop removes and returns the first entry
func (q *sectorQueue) pop() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// remove deletes the contact's entry, reporting whether it was present
func (q *sectorQueue) remove(contact string) bool {
	for i, e := range q.entries {
		if e.Contact == contact {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// position returns the contact's 1-based position, or 0 if absent
func (q *sectorQueue) position(contact string) int {
	for i, e := range q.entries {
		if e.Contact == contact {
			return i + 1
		}
	}
	return 0
}

// longestWaitSecs returns the wait time of the oldest entry
func (q *sectorQueue) longestWaitSecs(now time.Time) float64 {
	if len(q.entries) == 0 {
		return 0
	}
	return now.Sub(q.entries[0].EnqueuedAt).Seconds()
}
