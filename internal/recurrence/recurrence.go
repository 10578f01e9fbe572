// Package recurrence computes the occurrences of a recurring schedule. It is
// pure: every result is derived from the previous occurrence, never from the
// wall clock, so a late worker tick does not shift the series.
package recurrence

import (
	"strings"
	"time"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/model"
)

// ParseRecurrence reads the wire value. An empty value means none.
func ParseRecurrence(s string) (model.Recurrence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return model.RecurrenceNone, nil
	}
	r := model.Recurrence(s)
	if !r.Valid() {
		return "", apperr.Validation("parse recurrence", "unknown recurrence %q", s)
	}
	return r, nil
}

// NextRun returns the occurrence following lastRun. ok is false for
// non-recurring schedules.
//
// Monthly steps use calendar arithmetic: Jan 31 + 1 month normalizes to
// Mar 3 (Mar 2 in a leap year), the same rule time.AddDate applies.
func NextRun(lastRun time.Time, rec model.Recurrence) (next time.Time, ok bool) {
	switch rec {
	case model.RecurrenceDaily:
		return lastRun.AddDate(0, 0, 1), true
	case model.RecurrenceWeekly:
		return lastRun.AddDate(0, 0, 7), true
	case model.RecurrenceMonthly:
		return lastRun.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

// ShouldTerminate reports whether next falls past the end of the series.
func ShouldTerminate(next time.Time, end *time.Time) bool {
	return end != nil && next.After(*end)
}

// NextAfter walks the series from lastRun until it passes now, so a worker
// that was down for several periods resumes on the series grid instead of
// replaying every missed occurrence. The first step is always taken.
func NextAfter(lastRun, now time.Time, rec model.Recurrence) (time.Time, bool) {
	next, ok := NextRun(lastRun, rec)
	if !ok {
		return time.Time{}, false
	}
	for !next.After(now) {
		next, _ = NextRun(next, rec)
	}
	return next, true
}
