package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Type != nil && *f.Type != "" {
		q = q.Where("message_type = ?", *f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at < ?", f.To.UTC())
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at ASC, id ASC"
	if f.Desc {
		order = "created_at DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

func (r *MessageRepository) SetStatus(ctx context.Context, id int64, status model.MessageStatus) error {
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Aggregate recounts the totals of a message from its ledger and stamps
// sent_at. The status moves to sent only when no entry is left pending.
func (r *MessageRepository) Aggregate(ctx context.Context, id int64, now time.Time) (*model.DeliveryStats, error) {
	stats, err := countLedger(r.Write(ctx).WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"total_sent":   stats.Sent,
		"total_failed": stats.Failed,
		"sent_at":      now.UTC(),
	}
	if stats.Pending == 0 {
		updates["status"] = string(model.MessageStatusSent)
	}

	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return stats, nil
}

// Delete removes a message together with its ledger, schedule and attempt
// rows. Foreign keys are not relied upon.
func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		db := r.Write(ctx).WithContext(ctx)
		if err := db.Where("message_id = ?", id).Delete(&DeliveryAttemptEntity{}).Error; err != nil {
			return err
		}
		if err := db.Where("message_id = ?", id).Delete(&RecipientEntity{}).Error; err != nil {
			return err
		}
		if err := db.Where("message_id = ?", id).Delete(&ScheduleEntity{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", id).Delete(&MessageEntity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type ledgerCount struct {
	Status string
	N      int
}

func countLedger(db *gorm.DB, messageID int64) (*model.DeliveryStats, error) {
	var rows []ledgerCount
	err := db.Model(&RecipientEntity{}).
		Select("delivery_status AS status, COUNT(*) AS n").
		Where("message_id = ?", messageID).
		Group("delivery_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.DeliveryStats{}
	for _, row := range rows {
		stats.Total += row.N
		switch model.DeliveryStatus(row.Status) {
		case model.DeliveryStatusSent:
			stats.Sent = row.N
		case model.DeliveryStatusFailed:
			stats.Failed = row.N
		case model.DeliveryStatusPending:
			stats.Pending = row.N
		}
	}
	return stats, nil
}
