package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tilepress/tilepress/internal/domain"
)

type BatchJobRepository interface {
	Create(ctx context.Context, b *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.BatchStatus) error
	IncrementCounters(ctx context.Context, id string, processed, failed int) error
	Finalize(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string, completedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type GormBatchJobRepo struct {
	db *gorm.DB
}

func NewGormBatchJobRepo(db *gorm.DB) *GormBatchJobRepo {
	return &GormBatchJobRepo{db: db}
}

// Create stores the job row and its ordered member list in one
// transaction. The member list is immutable afterwards.
func (r *GormBatchJobRepo) Create(ctx context.Context, b *domain.BatchJob) error {
	model := batchJobModelFromDomain(b)
	if model == nil {
		return nil
	}

	items := make([]BatchItemModel, 0, len(b.ProjectIDs))
	for i, projectID := range b.ProjectIDs {
		items = append(items, BatchItemModel{
			JobID:     model.ID,
			Position:  i,
			ProjectID: projectID,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	projectIDs := b.ProjectIDs
	*b = *batchJobModelToDomain(model)
	b.ProjectIDs = projectIDs
	return nil
}

func (r *GormBatchJobRepo) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	var model BatchJobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []BatchItemModel
	err = r.db.WithContext(ctx).
		Where("job_id = ?", id).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	job := batchJobModelToDomain(&model)
	job.ProjectIDs = make([]string, 0, len(items))
	for _, item := range items {
		job.ProjectIDs = append(job.ProjectIDs, item.ProjectID)
	}
	return job, nil
}

// TransitionStatus performs a guarded status move so that, for example,
// starting an already started job fails with ErrConflict instead of
// silently re-running it.
func (r *GormBatchJobRepo) TransitionStatus(ctx context.Context, id string, from, to domain.BatchStatus) error {
	result := r.db.WithContext(ctx).
		Model(&BatchJobModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&BatchJobModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// IncrementCounters adds to the progress counters in place. Called once
// per processed member so that progress survives a crash mid-job.
func (r *GormBatchJobRepo) IncrementCounters(ctx context.Context, id string, processed, failed int) error {
	result := r.db.WithContext(ctx).
		Model(&BatchJobModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_files": gorm.Expr("processed_files + ?", processed),
			"failed_files":    gorm.Expr("failed_files + ?", failed),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchJobRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string, completedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BatchJobModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusRunning).
		Updates(map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Delete removes the job and its member list. Member projects are kept;
// only their batch linkage goes away with the items.
func (r *GormBatchJobRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&BatchItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND status <> ?", id, domain.BatchStatusRunning).
			Delete(&BatchJobModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&BatchJobModel{}).
				Where("id = ?", id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return domain.ErrConflict
			}
			return domain.ErrNotFound
		}
		return nil
	})
}
