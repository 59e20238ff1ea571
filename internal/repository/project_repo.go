package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tilepress/tilepress/internal/domain"
)

type ListParams struct {
	Status   *domain.ProjectStatus
	BatchID  *string
	Page     int
	PageSize int
}

type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, params ListParams) ([]domain.Project, int64, error)
	UpdateCalibration(ctx context.Context, id string, cal domain.Calibration, status domain.ProjectStatus) error
	UpdateSettings(ctx context.Context, id string, settings domain.StyleSettings) error
	TransitionStatus(ctx context.Context, id string, from, to domain.ProjectStatus) error
	SaveArtifact(ctx context.Context, id string, artifact []byte) error
	DetachBatch(ctx context.Context, batchID string) error
	Delete(ctx context.Context, id string) error
}

type GormProjectRepo struct {
	db *gorm.DB
}

func NewGormProjectRepo(db *gorm.DB) *GormProjectRepo {
	return &GormProjectRepo{db: db}
}

func (r *GormProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	model := projectModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *projectModelToDomain(model)
	}
	return nil
}

func (r *GormProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var model ProjectModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return projectModelToDomain(&model), nil
}

func (r *GormProjectRepo) List(ctx context.Context, params ListParams) ([]domain.Project, int64, error) {
	query := r.db.WithContext(ctx).Model(&ProjectModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.BatchID != nil {
		query = query.Where("batch_id = ?", *params.BatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	// Listing never ships the raster or the generated document.
	var models []ProjectModel
	err := query.
		Omit("source_data", "artifact").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	projects := make([]domain.Project, 0, len(models))
	for i := range models {
		projects = append(projects, *projectModelToDomain(&models[i]))
	}

	return projects, total, nil
}

func (r *GormProjectRepo) UpdateCalibration(ctx context.Context, id string, cal domain.Calibration, status domain.ProjectStatus) error {
	result := r.db.WithContext(ctx).
		Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scale":    cal.Scale,
			"offset_x": cal.OffsetX,
			"offset_y": cal.OffsetY,
			"rotation": cal.Rotation,
			"status":   status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormProjectRepo) UpdateSettings(ctx context.Context, id string, settings domain.StyleSettings) error {
	result := r.db.WithContext(ctx).
		Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(settingsColumns(settings))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionStatus performs a guarded status move. A zero-row update on
// an existing project means the precondition status no longer holds and
// is reported as ErrConflict; concurrent generators use this to make
// sure only one of them claims a project.
func (r *GormProjectRepo) TransitionStatus(ctx context.Context, id string, from, to domain.ProjectStatus) error {
	result := r.db.WithContext(ctx).
		Model(&ProjectModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&ProjectModel{}).
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

// SaveArtifact stores the generated document and completes the project
// in one update. Only a project still in PROCESSING can be completed.
func (r *GormProjectRepo) SaveArtifact(ctx context.Context, id string, artifact []byte) error {
	result := r.db.WithContext(ctx).
		Model(&ProjectModel{}).
		Where("id = ? AND status = ?", id, domain.ProjectStatusProcessing).
		Updates(map[string]any{
			"artifact":      artifact,
			"artifact_size": int64(len(artifact)),
			"status":        domain.ProjectStatusCompleted,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// DetachBatch clears the batch linkage of every member project of a
// deleted job. Affecting zero rows is fine; a failed create may have
// left a job with no members.
func (r *GormProjectRepo) DetachBatch(ctx context.Context, batchID string) error {
	return r.db.WithContext(ctx).
		Model(&ProjectModel{}).
		Where("batch_id = ?", batchID).
		Updates(map[string]any{
			"batch_id":       nil,
			"batch_position": nil,
		}).Error
}

func (r *GormProjectRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, domain.ProjectStatusProcessing).
		Delete(&ProjectModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&ProjectModel{}).
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
}
