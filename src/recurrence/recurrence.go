// Package recurrence implements the calendar arithmetic shared by the
// recurring-transaction materializer and the calendar event expansion.
//
// Monthly and yearly stepping is anchor-based with day-of-month clamping:
// every occurrence is computed from the series start, and a start on the 31st
// lands on the last day of shorter months instead of overflowing into the
// following month (Jan 31 -> Feb 28 -> Mar 31).
package recurrence

import (
	"fmt"
	"time"
)

// MaxOccurrences bounds expansion loops so a corrupt rule with a start date
// far in the past cannot loop pathologically.
const MaxOccurrences = 10000

// Interval is one recurrence step.
type Interval struct {
	Days   int
	Months int
	Years  int
}

// IntervalFor maps a rule frequency to its step. Quarterly and semiannual
// cover subscription billing cycles of 3 and 6 months.
func IntervalFor(frequency string) (Interval, error) {
	switch frequency {
	case "daily":
		return Interval{Days: 1}, nil
	case "weekly":
		return Interval{Days: 7}, nil
	case "monthly":
		return Interval{Months: 1}, nil
	case "quarterly":
		return Interval{Months: 3}, nil
	case "semiannual":
		return Interval{Months: 6}, nil
	case "yearly":
		return Interval{Years: 1}, nil
	}
	return Interval{}, fmt.Errorf("unknown frequency %q", frequency)
}

// OccurrenceAt returns the n-th occurrence (0-based) of a series anchored at
// start. Day-based intervals are fixed-length steps; month- and year-based
// intervals are computed from the anchor with day clamping.
func OccurrenceAt(start time.Time, iv Interval, n int) time.Time {
	if iv.Days > 0 {
		return start.AddDate(0, 0, n*iv.Days)
	}
	return addMonthsClamped(start, n*(iv.Months+12*iv.Years))
}

// addMonthsClamped adds months to t, clamping the day of month to the target
// month's length rather than letting time.AddDate normalize past it.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Between returns every occurrence of the series anchored at start that falls
// inside [from, to], in order. The scan starts from the series anchor, so
// occurrences before from are skipped, and it gives up after MaxOccurrences
// steps.
func Between(start time.Time, iv Interval, from, to time.Time) []time.Time {
	var out []time.Time
	for n := 0; n < MaxOccurrences; n++ {
		occ := OccurrenceAt(start, iv, n)
		if occ.After(to) {
			break
		}
		if !occ.Before(from) {
			out = append(out, occ)
		}
	}
	return out
}

// NextIndexAfter returns the index of the first occurrence strictly after t,
// or MaxOccurrences if the scan cap is hit. A zero t yields index 0.
func NextIndexAfter(start time.Time, iv Interval, t time.Time) int {
	for n := 0; n < MaxOccurrences; n++ {
		if OccurrenceAt(start, iv, n).After(t) {
			return n
		}
	}
	return MaxOccurrences
}
