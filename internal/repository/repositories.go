package repository

import "github.com/nimasrn/church-messaging/pkg/pg"

// Repositories bundles every repository over one read/write handle.
type Repositories struct {
	DB         *pg.DB
	Messages   *MessageRepository
	Recipients *RecipientRepository
	Schedules  *ScheduleRepository
	Attempts   *AttemptRepository
	WorkerRuns *WorkerRunRepository
	Members    *MemberRepository
}

func NewRepositories(db *pg.DB) *Repositories {
	return &Repositories{
		DB:         db,
		Messages:   NewMessageRepository(db),
		Recipients: NewRecipientRepository(db),
		Schedules:  NewScheduleRepository(db),
		Attempts:   NewAttemptRepository(db),
		WorkerRuns: NewWorkerRunRepository(db),
		Members:    NewMemberRepository(db),
	}
}
