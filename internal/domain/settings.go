package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// GridStyle selects the overlay pattern used during on-screen
// calibration. It has no effect on pagination.
type GridStyle string

const (
	GridStyleSquare    GridStyle = "square"
	GridStyleHexagon   GridStyle = "hexagon"
	GridStyleIsometric GridStyle = "isometric"
	GridStyleUniversal GridStyle = "universal"
)

func (g GridStyle) String() string { return string(g) }

func (g GridStyle) IsValid() bool {
	switch g {
	case GridStyleSquare, GridStyleHexagon, GridStyleIsometric, GridStyleUniversal:
		return true
	}
	return false
}

// UnitOfMeasurement is display-only.
type UnitOfMeasurement string

const (
	UnitImperial UnitOfMeasurement = "imperial"
	UnitMetric   UnitOfMeasurement = "metric"
)

func (u UnitOfMeasurement) String() string { return string(u) }

func (u UnitOfMeasurement) IsValid() bool {
	switch u {
	case UnitImperial, UnitMetric:
		return true
	}
	return false
}

// OutlineStyle controls the border stroked around each map tile.
type OutlineStyle string

const (
	OutlineNone   OutlineStyle = "none"
	OutlineSolid  OutlineStyle = "solid"
	OutlineDash   OutlineStyle = "dash"
	OutlineDotted OutlineStyle = "dotted"
)

func (o OutlineStyle) String() string { return string(o) }

func (o OutlineStyle) IsValid() bool {
	switch o {
	case OutlineNone, OutlineSolid, OutlineDash, OutlineDotted:
		return true
	}
	return false
}

const (
	MinOutlineThickness = 1
	MaxOutlineThickness = 10
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// StyleSettings is the validated style configuration applied per project
// or snapshotted per batch job. Defaults are applied once at the system
// boundary and never re-derived downstream.
type StyleSettings struct {
	GridStyle               GridStyle         `gorm:"type:varchar(10);not null" json:"gridStyle"`
	UnitOfMeasurement       UnitOfMeasurement `gorm:"type:varchar(10);not null" json:"unitOfMeasurement"`
	PaperSize               PaperSize         `gorm:"type:varchar(10);not null" json:"paperSize"`
	GridOverlay             bool              `gorm:"not null" json:"gridOverlay"`
	BackgroundColor         string            `gorm:"type:varchar(7);not null" json:"backgroundColor"`
	GridMarkerColor         string            `gorm:"type:varchar(7);not null" json:"gridMarkerColor"`
	GuideColor              string            `gorm:"type:varchar(7);not null" json:"guideColor"`
	OutlineColor            string            `gorm:"type:varchar(7);not null" json:"outlineColor"`
	AverageBackgroundColor  bool              `gorm:"not null" json:"averageBackgroundColor"`
	GenerateBacksideNumbers bool              `gorm:"not null" json:"generateBacksideNumbers"`
	OutlineStyle            OutlineStyle      `gorm:"type:varchar(10);not null" json:"outlineStyle"`
	OutlineThickness        int               `gorm:"not null" json:"outlineThickness"`
}

// DefaultStyleSettings returns the settings applied to a project that
// never received an explicit configuration.
func DefaultStyleSettings() StyleSettings {
	return StyleSettings{
		GridStyle:               GridStyleSquare,
		UnitOfMeasurement:       UnitMetric,
		PaperSize:               PaperA4,
		GridOverlay:             false,
		BackgroundColor:         "#ffffff",
		GridMarkerColor:         "#000000",
		GuideColor:              "#333333",
		OutlineColor:            "#000000",
		AverageBackgroundColor:  false,
		GenerateBacksideNumbers: false,
		OutlineStyle:            OutlineSolid,
		OutlineThickness:        1,
	}
}

// Normalize lowercases and trims the enumerated fields so stored values
// stay canonical regardless of request casing.
func (s *StyleSettings) Normalize() {
	s.GridStyle = GridStyle(strings.ToLower(strings.TrimSpace(string(s.GridStyle))))
	s.UnitOfMeasurement = UnitOfMeasurement(strings.ToLower(strings.TrimSpace(string(s.UnitOfMeasurement))))
	s.PaperSize = PaperSize(strings.ToLower(strings.TrimSpace(string(s.PaperSize))))
	s.OutlineStyle = OutlineStyle(strings.ToLower(strings.TrimSpace(string(s.OutlineStyle))))
	s.BackgroundColor = strings.ToLower(strings.TrimSpace(s.BackgroundColor))
	s.GridMarkerColor = strings.ToLower(strings.TrimSpace(s.GridMarkerColor))
	s.GuideColor = strings.ToLower(strings.TrimSpace(s.GuideColor))
	s.OutlineColor = strings.ToLower(strings.TrimSpace(s.OutlineColor))
}

func (s *StyleSettings) Validate() error {
	if !s.GridStyle.IsValid() {
		return fmt.Errorf("%w: invalid grid style %q", ErrValidation, s.GridStyle)
	}
	if !s.UnitOfMeasurement.IsValid() {
		return fmt.Errorf("%w: invalid unit of measurement %q", ErrValidation, s.UnitOfMeasurement)
	}
	// Paper size is deliberately lenient: unknown names resolve to a4 at
	// layout time. Still reject empty to catch missing payload fields.
	if strings.TrimSpace(string(s.PaperSize)) == "" {
		return fmt.Errorf("%w: paper size is required", ErrValidation)
	}
	if !s.OutlineStyle.IsValid() {
		return fmt.Errorf("%w: invalid outline style %q", ErrValidation, s.OutlineStyle)
	}
	if s.OutlineThickness < MinOutlineThickness || s.OutlineThickness > MaxOutlineThickness {
		return fmt.Errorf("%w: outline thickness must be between %d and %d (got %d)",
			ErrValidation, MinOutlineThickness, MaxOutlineThickness, s.OutlineThickness)
	}
	for name, value := range map[string]string{
		"backgroundColor": s.BackgroundColor,
		"gridMarkerColor": s.GridMarkerColor,
		"guideColor":      s.GuideColor,
		"outlineColor":    s.OutlineColor,
	} {
		if !hexColorRe.MatchString(value) {
			return fmt.Errorf("%w: %s must be a #rrggbb color (got %q)", ErrValidation, name, value)
		}
	}
	return nil
}
