package model

import "time"

type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusProcessing ScheduleStatus = "processing"
	ScheduleStatusCompleted  ScheduleStatus = "completed"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// ScheduleEntry governs when, and how often, a message's send cycle runs.
type ScheduleEntry struct {
	ID            int64          `json:"id"             db:"id"`
	MessageID     int64          `json:"message_id"     db:"message_id"`
	ScheduledTime time.Time      `json:"scheduled_time" db:"scheduled_time"`
	Status        ScheduleStatus `json:"status"         db:"status"`
	Recurrence    Recurrence     `json:"recurrence"     db:"recurrence"`
	RecurrenceEnd *time.Time     `json:"recurrence_end" db:"recurrence_end"`
	LastRun       *time.Time     `json:"last_run"       db:"last_run"`
	NextRun       time.Time      `json:"next_run"       db:"next_run"`
	ClaimedAt     *time.Time     `json:"claimed_at"     db:"claimed_at"`
	// ClaimedBy is the token of the worker run holding the claim.
	ClaimedBy     string         `json:"claimed_by,omitempty" db:"claimed_by"`
	RunCount      int            `json:"run_count"      db:"run_count"`
}

// WorkerRun is the persisted report of one delivery worker cycle.
type WorkerRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Claimed    int       `json:"claimed"`
	Processed  int       `json:"processed"`
	RowsSent   int       `json:"rows_sent"`
	RowsFailed int       `json:"rows_failed"`
	Errors     int       `json:"errors"`
	Skipped    bool      `json:"skipped"`
	Note       string    `json:"note,omitempty"`
}
