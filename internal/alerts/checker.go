package alerts

import (
	"fmt"
	"time"

	"github.com/theuszinp/chatbot/internal/types"
)

// Alert severities
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const (
	longWaitWarning  = 10 * time.Minute
	longWaitCritical = 20 * time.Minute
)

// CheckQueueAlerts evaluates alert rules for a slice of queue
// snapshots, mutating each snapshot's Alerts field in place.
func CheckQueueAlerts(snapshots []types.QueueSnapshot) {
	for i := range snapshots {
		snapshots[i].Alerts = nil

		wait := time.Duration(snapshots[i].LongestWaitSecs * float64(time.Second))
		switch {
		case wait > longWaitCritical:
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "wait_long",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Longest wait %s", formatDuration(wait)),
			})
		case wait > longWaitWarning:
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "wait_long",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Longest wait %s", formatDuration(wait)),
			})
		}

		if snapshots[i].WaitingCount > 0 && snapshots[i].FreeAttendants == 0 && snapshots[i].BusyAttendants == 0 {
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "no_attendants",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("%d waiting with no attendants in the sector", snapshots[i].WaitingCount),
			})
		}
	}
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
