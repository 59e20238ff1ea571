package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a map project.
type ProjectStatus string

const (
	ProjectStatusUploaded   ProjectStatus = "UPLOADED"
	ProjectStatusCalibrated ProjectStatus = "CALIBRATED"
	ProjectStatusProcessing ProjectStatus = "PROCESSING"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
)

func (s ProjectStatus) String() string { return string(s) }

func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusUploaded, ProjectStatusCalibrated, ProjectStatusProcessing, ProjectStatusCompleted:
		return true
	}
	return false
}

func ParseProjectStatusFromString(s string) (ProjectStatus, error) {
	st := ProjectStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid project status %q", ErrValidation, s)
	}
	return st, nil
}

// projectTransitions is the validated transition table. Any edge not
// listed here is rejected with ErrPrecondition.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusUploaded:   {ProjectStatusCalibrated},
	ProjectStatusCalibrated: {ProjectStatusProcessing, ProjectStatusCalibrated},
	// A failed generation falls back to UPLOADED, not CALIBRATED: the
	// failed attempt must be recalibrated explicitly before a retry.
	ProjectStatusProcessing: {ProjectStatusCompleted, ProjectStatusUploaded},
	ProjectStatusCompleted:  {ProjectStatusCalibrated},
}

// CanTransition reports whether from → to is a listed lifecycle edge.
func CanTransition(from, to ProjectStatus) bool {
	for _, next := range projectTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Calibration maps source pixels to output pixels. Scale is
// pixels-of-output per pixel-of-source; offsets and rotation are
// display-only and never affect pagination.
type Calibration struct {
	Scale    float64 `gorm:"not null;default:1" json:"scale"`
	OffsetX  float64 `gorm:"not null;default:0" json:"offsetX"`
	OffsetY  float64 `gorm:"not null;default:0" json:"offsetY"`
	Rotation float64 `gorm:"not null;default:0" json:"rotation"`
}

func (c *Calibration) Validate() error {
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive (got %g)", ErrValidation, c.Scale)
	}
	return nil
}

// Project is one calibrated map pending or having undergone document
// generation.
type Project struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"type:varchar(255);not null"`
	ContentType string `gorm:"type:varchar(100);not null"`

	// Source raster. Width and Height must be known before calibration;
	// zero dimensions are invalid.
	SourceData []byte `gorm:"type:bytea;not null"`
	Width      int    `gorm:"not null"`
	Height     int    `gorm:"not null"`

	Calibration Calibration   `gorm:"embedded"`
	Settings    StyleSettings `gorm:"embedded;embeddedPrefix:style_"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null"`

	// Artifact is set only when Status is COMPLETED.
	Artifact     []byte `gorm:"type:bytea"`
	ArtifactSize int64  `gorm:"not null;default:0"`

	BatchID       *string `gorm:"type:uuid"`
	BatchPosition *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Project) Validate() error {
	if len(p.SourceData) == 0 {
		return fmt.Errorf("%w: source image data is required", ErrValidation)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: image dimensions must be positive (got %dx%d)", ErrValidation, p.Width, p.Height)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, p.Status)
	}
	return nil
}

// Transition moves the project to the next lifecycle state, rejecting
// any edge not in the transition table.
func (p *Project) Transition(to ProjectStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: invalid target status %q", ErrValidation, to)
	}
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: cannot transition project from %s to %s", ErrPrecondition, p.Status, to)
	}
	p.Status = to
	return nil
}
