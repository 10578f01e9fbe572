package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/model"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		last string
		rec  model.Recurrence
		want string
	}{
		{"daily", "2024-01-01T10:00", model.RecurrenceDaily, "2024-01-02T10:00"},
		{"weekly", "2024-01-01T10:00", model.RecurrenceWeekly, "2024-01-08T10:00"},
		{"monthly", "2024-01-15T10:00", model.RecurrenceMonthly, "2024-02-15T10:00"},
		{"monthly across year", "2024-12-15T18:30", model.RecurrenceMonthly, "2025-01-15T18:30"},
		{"monthly overflow", "2024-01-31T10:00", model.RecurrenceMonthly, "2024-03-02T10:00"},
		{"daily leap day", "2024-02-28T07:00", model.RecurrenceDaily, "2024-02-29T07:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextRun(at(tt.last), tt.rec)
			assert.True(t, ok)
			assert.Equal(t, at(tt.want), got)
		})
	}

	_, ok := NextRun(at("2024-01-01T10:00"), model.RecurrenceNone)
	assert.False(t, ok)
}

func TestNextRun_AnchoredToLastRun(t *testing.T) {
	last := at("2024-01-01T10:00")
	first, _ := NextRun(last, model.RecurrenceDaily)
	time.Sleep(time.Millisecond)
	second, _ := NextRun(last, model.RecurrenceDaily)
	assert.Equal(t, first, second)
	assert.Equal(t, at("2024-01-02T10:00"), first)
}

func TestShouldTerminate(t *testing.T) {
	end := at("2024-01-03T00:00")
	assert.True(t, ShouldTerminate(at("2024-01-04T10:00"), &end))
	assert.False(t, ShouldTerminate(at("2024-01-02T10:00"), &end))
	assert.False(t, ShouldTerminate(end, &end))
	assert.False(t, ShouldTerminate(at("2030-01-01T00:00"), nil))
}

func TestShouldTerminate_EndDate(t *testing.T) {
	end, err := model.ParseRecurrenceEnd("2024-01-03")
	require.NoError(t, err)

	// daily at 10:00 from 01-01: the 01-03 occurrence runs, 01-04 ends it
	next, _ := NextRun(at("2024-01-02T10:00"), model.RecurrenceDaily)
	assert.False(t, ShouldTerminate(next, end))
	next, _ = NextRun(next, model.RecurrenceDaily)
	assert.Equal(t, at("2024-01-04T10:00"), next)
	assert.True(t, ShouldTerminate(next, end))
}

func TestNextAfter(t *testing.T) {
	last := at("2024-01-01T10:00")

	next, ok := NextAfter(last, at("2024-01-01T10:03"), model.RecurrenceDaily)
	assert.True(t, ok)
	assert.Equal(t, at("2024-01-02T10:00"), next)

	// worker was down for three days
	next, _ = NextAfter(last, at("2024-01-04T12:00"), model.RecurrenceDaily)
	assert.Equal(t, at("2024-01-05T10:00"), next)

	_, ok = NextAfter(last, at("2024-01-04T12:00"), model.RecurrenceNone)
	assert.False(t, ok)
}

func TestParseRecurrence(t *testing.T) {
	for in, want := range map[string]model.Recurrence{
		"":        model.RecurrenceNone,
		"none":    model.RecurrenceNone,
		" Daily ": model.RecurrenceDaily,
		"WEEKLY":  model.RecurrenceWeekly,
		"monthly": model.RecurrenceMonthly,
	} {
		got, err := ParseRecurrence(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRecurrence("yearly")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
