package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/pg"
)

// ErrNotPending is returned when a result is recorded for a ledger row that
// already left pending in this occurrence.
var ErrNotPending = errors.New("ledger entry is not pending")

const insertBatchSize = 200

type RecipientRepository struct {
	*pg.DB
}

func NewRecipientRepository(db *pg.DB) *RecipientRepository {
	return &RecipientRepository{
		db,
	}
}

// CreateBatch inserts the ledger rows and writes the generated ids back.
func (r *RecipientRepository) CreateBatch(ctx context.Context, entries []*model.RecipientEntry) error {
	if len(entries) == 0 {
		return nil
	}

	entities := make([]*RecipientEntity, len(entries))
	for i, e := range entries {
		entities[i] = &RecipientEntity{
			MessageID:      e.MessageID,
			RecipientID:    e.RecipientID,
			Name:           e.Name,
			Contact:        e.Contact,
			Channel:        string(e.Channel),
			DeliveryStatus: string(model.DeliveryStatusPending),
		}
	}

	if err := r.Write(ctx).WithContext(ctx).CreateInBatches(entities, insertBatchSize).Error; err != nil {
		return err
	}

	for i, e := range entities {
		entries[i].ID = e.ID
		entries[i].Status = model.DeliveryStatusPending
	}
	return nil
}

func (r *RecipientRepository) ListPending(ctx context.Context, messageID int64) ([]*model.RecipientEntry, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_id = ? AND delivery_status = ?", messageID, string(model.DeliveryStatusPending)).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}

func (r *RecipientRepository) List(ctx context.Context, messageID int64) ([]*model.RecipientEntry, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRecipientModels(entities), nil
}

// MarkResult moves a pending row to sent or failed according to the attempt.
func (r *RecipientRepository) MarkResult(ctx context.Context, a *model.DeliveryAttempt) error {
	status := model.DeliveryStatusFailed
	if a.Delivered {
		status = model.DeliveryStatusSent
	}

	updates := map[string]any{
		"delivery_status": string(status),
		"simulated":       a.Simulated,
		"error":           nullableString(a.Error),
		"sent_at":         nil,
	}
	if a.Delivered {
		updates["sent_at"] = a.AttemptedAt.UTC()
	}

	res := r.Write(ctx).WithContext(ctx).Model(&RecipientEntity{}).
		Where("id = ? AND delivery_status = ?", a.EntryID, string(model.DeliveryStatusPending)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// ResetForOccurrence returns every ledger row of the message to pending so the
// next occurrence of a recurring schedule delivers again.
func (r *RecipientRepository) ResetForOccurrence(ctx context.Context, messageID int64) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&RecipientEntity{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"delivery_status": string(model.DeliveryStatusPending),
			"simulated":       false,
			"sent_at":         nil,
			"error":           nil,
		})
	return res.RowsAffected, res.Error
}

func (r *RecipientRepository) Counts(ctx context.Context, messageID int64) (*model.DeliveryStats, error) {
	return countLedger(r.Read(ctx).WithContext(ctx), messageID)
}

type AttemptRepository struct {
	*pg.DB
}

func NewAttemptRepository(db *pg.DB) *AttemptRepository {
	return &AttemptRepository{
		db,
	}
}

func (r *AttemptRepository) Create(ctx context.Context, a *model.DeliveryAttempt) (*model.DeliveryAttempt, error) {
	entity := toDeliveryAttemptEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDeliveryAttemptModel(entity), nil
}

func (r *AttemptRepository) ListByEntry(ctx context.Context, entryID int64) ([]*model.DeliveryAttempt, error) {
	var entities []*DeliveryAttemptEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	attempts := make([]*model.DeliveryAttempt, len(entities))
	for i, e := range entities {
		attempts[i] = toDeliveryAttemptModel(e)
	}
	return attempts, nil
}
