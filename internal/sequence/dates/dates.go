// Package dates provides the pure business-day arithmetic the sequence
// scheduler is built on. All functions are deterministic given a date;
// "today" always comes from an injected Clock so tests can pin time.
package dates

import "time"

// Clock supplies the current time. The system clock is the production
// implementation; tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real-time clock.
func System() Clock { return systemClock{} }

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Midnight truncates t to its calendar date at UTC midnight. All due-date
// math operates on these normalized values so timezone and time-of-day
// never affect comparisons.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether d falls on Monday through Friday.
func IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextBusinessDay returns d if it is already a business day, otherwise the
// following Monday.
func NextBusinessDay(d time.Time) time.Time {
	d = Midnight(d)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AddBusinessDays advances d by exactly n business days. Weekends are
// skipped entirely and never count toward n.
func AddBusinessDays(d time.Time, n int) time.Time {
	d = Midnight(d)
	for i := 0; i < n; i++ {
		d = d.AddDate(0, 0, 1)
		for !IsBusinessDay(d) {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}

// DueDate maps a sequence-day to its calendar due date. A start date that
// falls on a weekend is shifted once to the following Monday; the shifted
// value is the effective start for every day offset, so due dates for
// different days never drift apart.
func DueDate(sequenceStartDate time.Time, sequenceDay int) time.Time {
	effectiveStart := NextBusinessDay(sequenceStartDate)
	if sequenceDay <= 1 {
		return effectiveStart
	}
	return AddBusinessDays(effectiveStart, sequenceDay-1)
}

// Compare orders two dates by calendar day: -1 if a is before b, 0 if they
// fall on the same day, 1 if a is after b.
func Compare(a, b time.Time) int {
	a, b = Midnight(a), Midnight(b)
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// IsOverdue reports whether due falls strictly before today.
func IsOverdue(due, today time.Time) bool {
	return Compare(due, today) < 0
}

// IsDueToday reports whether due falls on today's calendar date.
func IsDueToday(due, today time.Time) bool {
	return Compare(due, today) == 0
}

// DaysOverdue returns how many calendar days due lies in the past,
// never negative.
func DaysOverdue(due, today time.Time) int {
	diff := int(Midnight(today).Sub(Midnight(due)).Hours() / 24)
	if diff < 0 {
		return 0
	}
	return diff
}
