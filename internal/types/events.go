package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies engine transitions worth auditing
type EventType string

const (
	EventQueueJoined    EventType = "queue_joined"
	EventQueuePurged    EventType = "queue_purged"
	EventServiceStarted EventType = "service_started"
	EventServiceClosed  EventType = "service_closed"
	EventTransferred    EventType = "transferred"
	EventRatingReceived EventType = "rating_received"
	EventRatingExpired  EventType = "rating_expired"
	EventSessionReset   EventType = "session_reset"
)

// Event is a single audited engine transition. Events are appended to
// the store, kept in a recent-events ring for the dashboard, and pushed
// to connected dashboards over WebSocket.
type Event struct {
	ID        string    `json:"id" dynamodbav:"ID"`
	Type      EventType `json:"type" dynamodbav:"Type"`
	Contact   string    `json:"contact,omitempty" dynamodbav:"Contact"`
	Sector    string    `json:"sector,omitempty" dynamodbav:"Sector"`
	Attendant string    `json:"attendant,omitempty" dynamodbav:"Attendant"`
	Code      string    `json:"code,omitempty" dynamodbav:"Code"`
	Details   string    `json:"details,omitempty" dynamodbav:"Details"`
	DateKey   string    `json:"dateKey" dynamodbav:"DateKey"`     // YYYY-MM-DD (partition key)
	Timestamp string    `json:"timestamp" dynamodbav:"Timestamp"` // RFC3339
}

// NewEvent builds an event stamped with the given time
func NewEvent(t EventType, now time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		DateKey:   now.Format("2006-01-02"),
		Timestamp: now.Format(time.RFC3339),
	}
}

// QueueAlert flags a queue-health condition on a snapshot
type QueueAlert struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"` // "warning" or "critical"
	Message  string `json:"message"`
}

// QueueSnapshot is the current state of one sector's wait line
type QueueSnapshot struct {
	Sector          Sector       `json:"sector"`
	SectorName      string       `json:"sectorName"`
	Waiting         []string     `json:"waiting"` // contact ids in FIFO order
	WaitingCount    int          `json:"waitingCount"`
	LongestWaitSecs float64      `json:"longestWaitSecs"`
	FreeAttendants  int          `json:"freeAttendants"`
	BusyAttendants  int          `json:"busyAttendants"`
	Alerts          []QueueAlert `json:"alerts,omitempty"`
}

// SectorData holds everything the dashboard shows for one sector
type SectorData struct {
	Name       string        `json:"name"`
	Queue      QueueSnapshot `json:"queue"`
	Sessions   []Session     `json:"sessions"`
	Attendants []Attendant   `json:"attendants"`
}

// Snapshot is the single payload broadcast to dashboards every
// aggregation interval
type Snapshot struct {
	Type      string                 `json:"type"` // always "snapshot"
	Timestamp time.Time              `json:"timestamp"`
	Sectors   map[Sector]*SectorData `json:"sectors"`
}
