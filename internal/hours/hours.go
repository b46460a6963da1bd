// Package hours implements the business-hours gate applied when a
// contact enters a time-restricted sector. The gate is consulted at
// entry and at transfer time only; an already-active session is never
// interrupted by its window closing.
package hours

import (
	"fmt"
	"time"

	"github.com/theuszinp/chatbot/internal/types"
)

// Window is a weekday plus time-of-day opening window
type Window struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Weekdays    []time.Weekday
}

// windows lists the time-gated sectors. Sectors absent from this map
// are open around the clock.
var windows = map[types.Sector]Window{
	types.SectorSales: {
		OpenHour:    8,
		OpenMinute:  0,
		CloseHour:   17,
		CloseMinute: 30,
		Weekdays:    []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	},
}

// IsOpen reports whether the sector accepts new service at the given
// instant. Ungated sectors are always open.
func IsOpen(sector types.Sector, now time.Time) bool {
	w, gated := windows[sector]
	if !gated {
		return true
	}

	weekday := false
	for _, d := range w.Weekdays {
		if now.Weekday() == d {
			weekday = true
			break
		}
	}
	if !weekday {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	open := w.OpenHour*60 + w.OpenMinute
	closeAt := w.CloseHour*60 + w.CloseMinute
	return minutes >= open && minutes <= closeAt
}

// Gated reports whether the sector has a configured window
func Gated(sector types.Sector) bool {
	_, ok := windows[sector]
	return ok
}

// WindowText returns a human-readable description of the sector's
// window for use in chat notices, e.g. "Monday to Friday, 8:00 to 17:30".
func WindowText(sector types.Sector) string {
	w, ok := windows[sector]
	if !ok {
		return ""
	}
	return fmt.Sprintf("Monday to Friday, %d:%02d to %d:%02d",
		w.OpenHour, w.OpenMinute, w.CloseHour, w.CloseMinute)
}
