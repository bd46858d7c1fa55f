/*
day.go - Calendar-day resolution under a fixed UTC offset

PURPOSE:
  Maps an arbitrary timestamp to the calendar day it belongs to at the
  branch's local offset. Every balance receipt is keyed by the start of
  such a day, so this is the single place where "which day is it" gets
  decided.

WHY A FIXED OFFSET?
  All branches operate in one timezone (IST, +5:30) and the business day
  follows the wall clock, not UTC. A fixed offset avoids DST surprises
  and keeps the day key stable forever.

CONTRACT:
  ResolveDay is pure. Same input, same window, no side effects, no store
  access. Window start is inclusive local midnight; window end is the
  last representable millisecond of that day (23:59:59.999 local).

SEE ALSO:
  - ledger.go: Uses the window for receipt lookup and creation
  - store.go: Stores key receipts by the window start instant
*/
package ledger

import "time"

// IndiaOffsetMinutes is the deployment default: UTC+5:30.
const IndiaOffsetMinutes = 330

const (
	minOffsetMinutes = -12 * 60
	maxOffsetMinutes = 14 * 60
)

// DayWindow bounds one calendar day at a fixed UTC offset.
// Start is inclusive local midnight; End is the last millisecond of the day.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ResolveDay computes the calendar-day window that `at` falls into under
// the given fixed UTC offset (in minutes east of UTC).
//
// Returns ErrInvalidTimestamp for the zero time and ErrInvalidOffset for
// offsets outside the real-world range [-12h, +14h].
func ResolveDay(at time.Time, offsetMinutes int) (DayWindow, error) {
	if at.IsZero() {
		return DayWindow{}, ErrInvalidTimestamp
	}
	if offsetMinutes < minOffsetMinutes || offsetMinutes > maxOffsetMinutes {
		return DayWindow{}, ErrInvalidOffset
	}

	loc := time.FixedZone("", offsetMinutes*60)
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24*time.Hour - time.Millisecond)

	return DayWindow{Start: start, End: end}, nil
}
