package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/pg"
	"gorm.io/gorm"
)

// ErrClaimLost is returned by Claim when another worker owns the entry or
// the entry is no longer due.
var ErrClaimLost = errors.New("schedule entry already claimed")

type ScheduleRepository struct {
	*pg.DB
}

func NewScheduleRepository(db *pg.DB) *ScheduleRepository {
	return &ScheduleRepository{
		db,
	}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *model.ScheduleEntry) (*model.ScheduleEntry, error) {
	entity := toScheduleEntity(s)
	if entity.Status == "" {
		entity.Status = string(model.ScheduleStatusPending)
	}
	if entity.Recurrence == "" {
		entity.Recurrence = string(model.RecurrenceNone)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toScheduleModel(entity), nil
}

func (r *ScheduleRepository) Get(ctx context.Context, id int64) (*model.ScheduleEntry, error) {
	var entity ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toScheduleModel(&entity), nil
}

// Due lists pending entries whose next_run has passed, oldest first.
func (r *ScheduleRepository) Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduleEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entities []*ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND next_run <= ?", string(model.ScheduleStatusPending), now.UTC()).
		Order("next_run ASC, id ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toScheduleModels(entities), nil
}

// Claim moves a due entry from pending to processing with one conditional
// update and records owner as the holder. Exactly one caller observes a row
// change; the others get ErrClaimLost.
func (r *ScheduleRepository) Claim(ctx context.Context, id int64, owner string, now time.Time) error {
	now = now.UTC()
	res := r.Write(ctx).WithContext(ctx).Model(&ScheduleEntity{}).
		Where("id = ? AND status = ? AND next_run <= ?", id, string(model.ScheduleStatusPending), now).
		Updates(map[string]any{
			"status":     string(model.ScheduleStatusProcessing),
			"claimed_at": now,
			"claimed_by": owner,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// Heartbeat refreshes claimed_at while owner still holds the claim, keeping
// the entry out of RecoverStale. ErrClaimLost means the claim was recovered
// and possibly taken by another worker.
func (r *ScheduleRepository) Heartbeat(ctx context.Context, id int64, owner string, now time.Time) error {
	res := r.owned(ctx, id, owner).Update("claimed_at", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// Complete closes an entry after its final occurrence.
func (r *ScheduleRepository) Complete(ctx context.Context, id int64, owner string, lastRun time.Time) error {
	return r.finish(ctx, id, owner, map[string]any{
		"status":     string(model.ScheduleStatusCompleted),
		"last_run":   lastRun.UTC(),
		"claimed_at": nil,
		"claimed_by": nil,
		"run_count":  gorm.Expr("run_count + 1"),
	})
}

// Rearm records the occurrence that just ran and puts the entry back in the
// queue for nextRun.
func (r *ScheduleRepository) Rearm(ctx context.Context, id int64, owner string, lastRun, nextRun time.Time) error {
	if !nextRun.After(lastRun) {
		return errors.New("next run must be after last run")
	}
	return r.finish(ctx, id, owner, map[string]any{
		"status":     string(model.ScheduleStatusPending),
		"last_run":   lastRun.UTC(),
		"next_run":   nextRun.UTC(),
		"claimed_at": nil,
		"claimed_by": nil,
		"run_count":  gorm.Expr("run_count + 1"),
	})
}

func (r *ScheduleRepository) finish(ctx context.Context, id int64, owner string, updates map[string]any) error {
	res := r.owned(ctx, id, owner).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

func (r *ScheduleRepository) owned(ctx context.Context, id int64, owner string) *gorm.DB {
	return r.Write(ctx).WithContext(ctx).Model(&ScheduleEntity{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, string(model.ScheduleStatusProcessing), owner)
}

// RecoverStale releases entries whose holder has not heartbeated since
// olderThan, typically left behind by a crashed worker. The old holder's
// owner-checked writes fail from then on.
func (r *ScheduleRepository) RecoverStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&ScheduleEntity{}).
		Where("status = ? AND claimed_at < ?", string(model.ScheduleStatusProcessing), olderThan.UTC()).
		Updates(map[string]any{
			"status":     string(model.ScheduleStatusPending),
			"claimed_at": nil,
			"claimed_by": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *ScheduleRepository) ListByMessage(ctx context.Context, messageID int64) ([]*model.ScheduleEntry, error) {
	var entities []*ScheduleEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toScheduleModels(entities), nil
}
