package repository

import (
	"context"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/pg"
)

type WorkerRunRepository struct {
	*pg.DB
}

func NewWorkerRunRepository(db *pg.DB) *WorkerRunRepository {
	return &WorkerRunRepository{
		db,
	}
}

func (r *WorkerRunRepository) Create(ctx context.Context, run *model.WorkerRun) error {
	return r.Write(ctx).WithContext(ctx).Create(toWorkerRunEntity(run)).Error
}

// List returns the most recent runs first.
func (r *WorkerRunRepository) List(ctx context.Context, limit int) ([]*model.WorkerRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entities []*WorkerRunEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	runs := make([]*model.WorkerRun, len(entities))
	for i, e := range entities {
		runs[i] = toWorkerRunModel(e)
	}
	return runs, nil
}
