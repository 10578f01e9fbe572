package repository

import (
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
)

type ScheduleEntity struct {
	ID            int64      `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	MessageID     int64      `db:"message_id"     gorm:"column:message_id;not null;index"`
	ScheduledTime time.Time  `db:"scheduled_time" gorm:"column:scheduled_time;not null"`
	Status        string     `db:"status"         gorm:"column:status;not null;default:pending;index:idx_schedules_due,priority:1"`
	Recurrence    string     `db:"recurrence"     gorm:"column:recurrence;not null;default:none"`
	RecurrenceEnd *time.Time `db:"recurrence_end" gorm:"column:recurrence_end"`
	LastRun       *time.Time `db:"last_run"       gorm:"column:last_run"`
	NextRun       time.Time  `db:"next_run"       gorm:"column:next_run;not null;index:idx_schedules_due,priority:2"`
	ClaimedAt     *time.Time `db:"claimed_at"     gorm:"column:claimed_at"`
	ClaimedBy     *string    `db:"claimed_by"     gorm:"column:claimed_by"`
	RunCount      int        `db:"run_count"      gorm:"column:run_count;not null;default:0"`
	UpdatedAt     time.Time  `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (ScheduleEntity) TableName() string {
	return "message_schedules"
}

func toScheduleEntity(m *model.ScheduleEntry) *ScheduleEntity {
	if m == nil {
		return nil
	}
	return &ScheduleEntity{
		ID:            m.ID,
		MessageID:     m.MessageID,
		ScheduledTime: m.ScheduledTime.UTC(),
		Status:        string(m.Status),
		Recurrence:    string(m.Recurrence),
		RecurrenceEnd: utcPtr(m.RecurrenceEnd),
		LastRun:       utcPtr(m.LastRun),
		NextRun:       m.NextRun.UTC(),
		ClaimedAt:     utcPtr(m.ClaimedAt),
		ClaimedBy:     strPtr(m.ClaimedBy),
		RunCount:      m.RunCount,
	}
}

func toScheduleModel(e *ScheduleEntity) *model.ScheduleEntry {
	if e == nil {
		return nil
	}
	return &model.ScheduleEntry{
		ID:            e.ID,
		MessageID:     e.MessageID,
		ScheduledTime: e.ScheduledTime,
		Status:        model.ScheduleStatus(e.Status),
		Recurrence:    model.Recurrence(e.Recurrence),
		RecurrenceEnd: e.RecurrenceEnd,
		LastRun:       e.LastRun,
		NextRun:       e.NextRun,
		ClaimedAt:     e.ClaimedAt,
		ClaimedBy:     derefStr(e.ClaimedBy),
		RunCount:      e.RunCount,
	}
}

func toScheduleModels(entities []*ScheduleEntity) []*model.ScheduleEntry {
	models := make([]*model.ScheduleEntry, len(entities))
	for i, e := range entities {
		models[i] = toScheduleModel(e)
	}
	return models
}

type WorkerRunEntity struct {
	ID         string    `db:"id"          gorm:"primaryKey;column:id;type:varchar(36)"`
	StartedAt  time.Time `db:"started_at"  gorm:"column:started_at;not null;index"`
	FinishedAt time.Time `db:"finished_at" gorm:"column:finished_at;not null"`
	Claimed    int       `db:"claimed"     gorm:"column:claimed;not null;default:0"`
	Processed  int       `db:"processed"   gorm:"column:processed;not null;default:0"`
	RowsSent   int       `db:"rows_sent"   gorm:"column:rows_sent;not null;default:0"`
	RowsFailed int       `db:"rows_failed" gorm:"column:rows_failed;not null;default:0"`
	Errors     int       `db:"errors"      gorm:"column:errors;not null;default:0"`
	Skipped    bool      `db:"skipped"     gorm:"column:skipped;not null;default:false"`
	Note       *string   `db:"note"        gorm:"column:note"`
}

func (WorkerRunEntity) TableName() string {
	return "worker_runs"
}

func toWorkerRunEntity(m *model.WorkerRun) *WorkerRunEntity {
	return &WorkerRunEntity{
		ID:         m.ID,
		StartedAt:  m.StartedAt.UTC(),
		FinishedAt: m.FinishedAt.UTC(),
		Claimed:    m.Claimed,
		Processed:  m.Processed,
		RowsSent:   m.RowsSent,
		RowsFailed: m.RowsFailed,
		Errors:     m.Errors,
		Skipped:    m.Skipped,
		Note:       nullableString(m.Note),
	}
}

func toWorkerRunModel(e *WorkerRunEntity) *model.WorkerRun {
	m := &model.WorkerRun{
		ID:         e.ID,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		Claimed:    e.Claimed,
		Processed:  e.Processed,
		RowsSent:   e.RowsSent,
		RowsFailed: e.RowsFailed,
		Errors:     e.Errors,
		Skipped:    e.Skipped,
	}
	if e.Note != nil {
		m.Note = *e.Note
	}
	return m
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
