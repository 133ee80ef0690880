// Package term maps points in time to academic term labels. Every record
// and query in the system is scoped by the label this package produces.
package term

import (
	"fmt"
	"time"
)

// Current returns the academic term label for the given instant:
// January through April is Spring, May through July is Summer, and
// August through December is Fall, each suffixed with the calendar year.
func Current(now time.Time) string {
	season := "Fall"
	switch m := now.Month(); {
	case m <= time.April:
		season = "Spring"
	case m <= time.July:
		season = "Summer"
	}
	return fmt.Sprintf("%s %d", season, now.Year())
}

// DayRange returns the start and end of the calendar day containing t,
// in t's location. The end bound is exclusive.
func DayRange(t time.Time) (start, end time.Time, ok bool) {
	if t.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1), true
}

// DayKey returns the calendar-day bucket label for a timestamp, used by
// attendance summaries. Two check-ins on the same local date share a key
// even when their ledger rows remain distinct.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
