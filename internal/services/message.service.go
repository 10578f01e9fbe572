package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/delivery"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/internal/repository"
	"github.com/nimasrn/church-messaging/pkg/logger"
)

var (
	ErrNotFound = errors.New("message not found")
)

const (
	opCreate = "create message"
	opRead   = "read message"
	opDelete = "delete message"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	Get(ctx context.Context, id int64) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) // results, totalCount
	Delete(ctx context.Context, id int64) error
}

type RecipientRepository interface {
	CreateBatch(ctx context.Context, entries []*model.RecipientEntry) error
	List(ctx context.Context, messageID int64) ([]*model.RecipientEntry, error)
	Counts(ctx context.Context, messageID int64) (*model.DeliveryStats, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *model.ScheduleEntry) (*model.ScheduleEntry, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*model.ScheduleEntry, error)
}

type WorkerRunRepository interface {
	List(ctx context.Context, limit int) ([]*model.WorkerRun, error)
}

type AudienceResolver interface {
	Resolve(ctx context.Context, spec model.AudienceSpec) ([]model.Recipient, error)
}

// ImmediateSender delivers one schedule entry right away. *delivery.Worker
// satisfies it.
type ImmediateSender interface {
	ProcessNow(ctx context.Context, scheduleID int64) (*delivery.EntryResult, error)
}

type MessageService struct {
	tx            Transactor
	messageRepo   MessageRepository
	recipientRepo RecipientRepository
	scheduleRepo  ScheduleRepository
	runRepo       WorkerRunRepository
	resolver      AudienceResolver
	sender        ImmediateSender
	now           func() time.Time
}

func NewMessageService(repos *repository.Repositories, resolver AudienceResolver, sender ImmediateSender) *MessageService {
	return &MessageService{
		tx:            repos.DB,
		messageRepo:   repos.Messages,
		recipientRepo: repos.Recipients,
		scheduleRepo:  repos.Schedules,
		runRepo:       repos.WorkerRuns,
		resolver:      resolver,
		sender:        sender,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateResult is what the author sees right after creation.
type CreateResult struct {
	MessageID       int64                `json:"message_id"`
	TotalRecipients int                  `json:"total_recipients"`
	Status          model.MessageStatus  `json:"status"`
	ScheduleID      *int64               `json:"schedule_id,omitempty"`
	DeliveryStats   *model.DeliveryStats `json:"delivery_stats,omitempty"`
}

// Create validates the request, then in one transaction inserts the
// message, resolves its audience and writes one ledger row per recipient
// and channel with a usable contact. An audience that yields no rows rolls
// everything back with NoRecipients. For action send the schedule entry is
// delivered inline once the transaction has committed.
func (s *MessageService) Create(ctx context.Context, req model.CreateMessageRequest) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	status := model.MessageStatusScheduled
	var runAt *time.Time
	switch req.Action {
	case model.ActionDraft:
		status = model.MessageStatusDraft
	case model.ActionSend:
		runAt = &now
	case model.ActionSchedule:
		at := req.ScheduledAt.UTC()
		runAt = &at
	}

	result := &CreateResult{Status: status}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		recipients, err := s.resolver.Resolve(ctx, req.Audience)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return apperr.NoRecipients(opCreate, "audience matched no members")
		}

		entries := ledgerRows(recipients, req.Channels)
		if len(entries) == 0 {
			return apperr.NoRecipients(opCreate, "no recipient has a contact for the selected channels")
		}

		msg, err := s.messageRepo.Create(ctx, &model.Message{
			Type:            req.Type,
			Title:           req.Title,
			Content:         req.Content,
			Channels:        req.Channels,
			Status:          status,
			ScheduledAt:     runAt,
			TotalRecipients: len(entries),
		})
		if err != nil {
			return err
		}
		result.MessageID = msg.ID
		result.TotalRecipients = msg.TotalRecipients

		for _, e := range entries {
			e.MessageID = msg.ID
		}
		if err := s.recipientRepo.CreateBatch(ctx, entries); err != nil {
			return err
		}

		if runAt == nil {
			return nil
		}
		entry, err := s.scheduleRepo.Create(ctx, &model.ScheduleEntry{
			MessageID:     msg.ID,
			ScheduledTime: *runAt,
			Status:        model.ScheduleStatusPending,
			Recurrence:    req.Recurrence,
			RecurrenceEnd: utc(req.RecurrenceEnd),
			NextRun:       *runAt,
		})
		if err != nil {
			return err
		}
		result.ScheduleID = &entry.ID
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence(opCreate, err)
	}

	logger.Info("Message created",
		"message_id", result.MessageID,
		"action", req.Action,
		"audience", req.Audience.Type(),
		"total_recipients", result.TotalRecipients)

	if req.Action == model.ActionSend {
		s.sendNow(ctx, result)
	}
	return result, nil
}

// sendNow runs the inline delivery of a send. Its failure does not undo the
// creation; the entry stays claimable by the worker.
func (s *MessageService) sendNow(ctx context.Context, result *CreateResult) {
	if s.sender == nil || result.ScheduleID == nil {
		return
	}
	res, err := s.sender.ProcessNow(ctx, *result.ScheduleID)
	if err != nil {
		logger.Error("Inline delivery failed", "message_id", result.MessageID, "schedule_id", *result.ScheduleID, "error", err)
	}
	if res != nil && res.Stats != nil {
		result.DeliveryStats = res.Stats
	}
	if msg, err := s.messageRepo.Get(ctx, result.MessageID); err == nil {
		result.Status = msg.Status
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func ledgerRows(recipients []model.Recipient, channels []model.Channel) []*model.RecipientEntry {
	entries := make([]*model.RecipientEntry, 0, len(recipients)*len(channels))
	for _, r := range recipients {
		for _, ch := range channels {
			contact := strings.TrimSpace(r.ContactFor(ch))
			if contact == "" {
				continue
			}
			entries = append(entries, &model.RecipientEntry{
				RecipientID: r.ID,
				Name:        r.Name,
				Contact:     contact,
				Channel:     ch,
				Status:      model.DeliveryStatusPending,
			})
		}
	}
	return entries
}

// MessageDetail is a message with its live ledger counts.
type MessageDetail struct {
	*model.Message
	Stats *model.DeliveryStats `json:"delivery_stats"`
}

func (s *MessageService) Get(ctx context.Context, id int64) (*MessageDetail, error) {
	msg, err := s.messageRepo.Get(ctx, id)
	if err != nil {
		return nil, s.mapErr(opRead, err)
	}
	stats, err := s.recipientRepo.Counts(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(opRead, err)
	}
	return &MessageDetail{Message: msg, Stats: stats}, nil
}

func (s *MessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	items, total, err := s.messageRepo.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Persistence(opRead, err)
	}
	return items, total, nil
}

func (s *MessageService) Recipients(ctx context.Context, id int64) ([]*model.RecipientEntry, error) {
	if _, err := s.messageRepo.Get(ctx, id); err != nil {
		return nil, s.mapErr(opRead, err)
	}
	rows, err := s.recipientRepo.List(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(opRead, err)
	}
	return rows, nil
}

func (s *MessageService) Schedules(ctx context.Context, id int64) ([]*model.ScheduleEntry, error) {
	if _, err := s.messageRepo.Get(ctx, id); err != nil {
		return nil, s.mapErr(opRead, err)
	}
	entries, err := s.scheduleRepo.ListByMessage(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(opRead, err)
	}
	return entries, nil
}

func (s *MessageService) Delete(ctx context.Context, id int64) error {
	if err := s.messageRepo.Delete(ctx, id); err != nil {
		return s.mapErr(opDelete, err)
	}
	logger.Info("Message deleted", "message_id", id)
	return nil
}

func (s *MessageService) WorkerRuns(ctx context.Context, limit int) ([]*model.WorkerRun, error) {
	runs, err := s.runRepo.List(ctx, limit)
	if err != nil {
		return nil, apperr.Persistence(opRead, err)
	}
	return runs, nil
}

func (s *MessageService) mapErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return apperr.Persistence(op, err)
}
