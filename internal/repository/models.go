package repository

import (
	"time"

	"github.com/tilepress/tilepress/internal/domain"
)

// ProjectModel is the persistence model for the projects table. Source
// raster and generated document both live in bytea columns next to the
// project row.
type ProjectModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"type:varchar(255);not null"`
	ContentType string `gorm:"type:varchar(100);not null"`

	SourceData []byte `gorm:"type:bytea;not null"`
	Width      int    `gorm:"not null"`
	Height     int    `gorm:"not null"`

	Calibration domain.Calibration   `gorm:"embedded"`
	Settings    domain.StyleSettings `gorm:"embedded;embeddedPrefix:style_"`
	Status      domain.ProjectStatus `gorm:"type:varchar(20);not null"`

	Artifact     []byte `gorm:"type:bytea"`
	ArtifactSize int64  `gorm:"not null;default:0"`

	BatchID       *string `gorm:"type:uuid"`
	BatchPosition *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProjectModel) TableName() string {
	return "projects"
}

// BatchJobModel is the persistence model for batch_jobs.
type BatchJobModel struct {
	ID     string             `gorm:"type:uuid;primaryKey"`
	Name   string             `gorm:"type:varchar(255);not null"`
	Status domain.BatchStatus `gorm:"type:varchar(20);not null"`

	TotalFiles     int `gorm:"not null"`
	ProcessedFiles int `gorm:"not null;default:0"`
	FailedFiles    int `gorm:"not null;default:0"`

	Settings domain.StyleSettings `gorm:"embedded;embeddedPrefix:style_"`

	ErrorMessage *string    `gorm:"type:text"`
	CompletedAt  *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BatchJobModel) TableName() string {
	return "batch_jobs"
}

// BatchItemModel is one row of the immutable ordered member list of a
// batch job.
type BatchItemModel struct {
	JobID     string `gorm:"type:uuid;primaryKey"`
	Position  int    `gorm:"primaryKey"`
	ProjectID string `gorm:"type:uuid;not null"`
}

func (BatchItemModel) TableName() string {
	return "batch_items"
}

// settingsColumns spells out every style column explicitly. A struct
// update would skip false booleans, silently keeping the old values.
func settingsColumns(s domain.StyleSettings) map[string]any {
	return map[string]any{
		"style_grid_style":                s.GridStyle,
		"style_unit_of_measurement":       s.UnitOfMeasurement,
		"style_paper_size":                s.PaperSize,
		"style_grid_overlay":              s.GridOverlay,
		"style_background_color":          s.BackgroundColor,
		"style_grid_marker_color":         s.GridMarkerColor,
		"style_guide_color":               s.GuideColor,
		"style_outline_color":             s.OutlineColor,
		"style_average_background_color":  s.AverageBackgroundColor,
		"style_generate_backside_numbers": s.GenerateBacksideNumbers,
		"style_outline_style":             s.OutlineStyle,
		"style_outline_thickness":         s.OutlineThickness,
	}
}

func projectModelFromDomain(p *domain.Project) *ProjectModel {
	if p == nil {
		return nil
	}

	return &ProjectModel{
		ID:            p.ID,
		Name:          p.Name,
		ContentType:   p.ContentType,
		SourceData:    p.SourceData,
		Width:         p.Width,
		Height:        p.Height,
		Calibration:   p.Calibration,
		Settings:      p.Settings,
		Status:        p.Status,
		Artifact:      p.Artifact,
		ArtifactSize:  p.ArtifactSize,
		BatchID:       p.BatchID,
		BatchPosition: p.BatchPosition,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func projectModelToDomain(m *ProjectModel) *domain.Project {
	if m == nil {
		return nil
	}

	return &domain.Project{
		ID:            m.ID,
		Name:          m.Name,
		ContentType:   m.ContentType,
		SourceData:    m.SourceData,
		Width:         m.Width,
		Height:        m.Height,
		Calibration:   m.Calibration,
		Settings:      m.Settings,
		Status:        m.Status,
		Artifact:      m.Artifact,
		ArtifactSize:  m.ArtifactSize,
		BatchID:       m.BatchID,
		BatchPosition: m.BatchPosition,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func batchJobModelFromDomain(b *domain.BatchJob) *BatchJobModel {
	if b == nil {
		return nil
	}

	return &BatchJobModel{
		ID:             b.ID,
		Name:           b.Name,
		Status:         b.Status,
		TotalFiles:     b.TotalFiles,
		ProcessedFiles: b.ProcessedFiles,
		FailedFiles:    b.FailedFiles,
		Settings:       b.Settings,
		ErrorMessage:   b.ErrorMessage,
		CompletedAt:    b.CompletedAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchJobModelToDomain(m *BatchJobModel) *domain.BatchJob {
	if m == nil {
		return nil
	}

	return &domain.BatchJob{
		ID:             m.ID,
		Name:           m.Name,
		Status:         m.Status,
		TotalFiles:     m.TotalFiles,
		ProcessedFiles: m.ProcessedFiles,
		FailedFiles:    m.FailedFiles,
		Settings:       m.Settings,
		ErrorMessage:   m.ErrorMessage,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
