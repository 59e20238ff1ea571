package domain

import (
	"errors"
	"testing"
)

func TestParseProjectStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ProjectStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "COMPLETED", want: ProjectStatusCompleted},
		{name: "valid lowercase with spaces", input: " uploaded ", want: ProjectStatusUploaded},
		{name: "invalid", input: "archived", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseProjectStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseProjectStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseProjectStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseProjectStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProjectTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    ProjectStatus
		to      ProjectStatus
		wantErr error
	}{
		{name: "upload to calibrated", from: ProjectStatusUploaded, to: ProjectStatusCalibrated},
		{name: "recalibrate keeps calibrated", from: ProjectStatusCalibrated, to: ProjectStatusCalibrated},
		{name: "calibrated to processing", from: ProjectStatusCalibrated, to: ProjectStatusProcessing},
		{name: "processing to completed", from: ProjectStatusProcessing, to: ProjectStatusCompleted},
		{name: "failed generation falls back to uploaded", from: ProjectStatusProcessing, to: ProjectStatusUploaded},
		{name: "completed can be recalibrated", from: ProjectStatusCompleted, to: ProjectStatusCalibrated},
		{name: "uploaded cannot skip calibration", from: ProjectStatusUploaded, to: ProjectStatusProcessing, wantErr: ErrPrecondition},
		{name: "completed cannot regenerate directly", from: ProjectStatusCompleted, to: ProjectStatusProcessing, wantErr: ErrPrecondition},
		{name: "processing cannot go back to calibrated", from: ProjectStatusProcessing, to: ProjectStatusCalibrated, wantErr: ErrPrecondition},
		{name: "invalid target", from: ProjectStatusUploaded, to: ProjectStatus("ARCHIVED"), wantErr: ErrValidation},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Project{Status: tt.from}
			err := p.Transition(tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition(%s → %s) error = %v, want %v", tt.from, tt.to, err, tt.wantErr)
				}
				if p.Status != tt.from {
					t.Fatalf("status mutated to %s on rejected transition", p.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("Transition(%s → %s) unexpected error = %v", tt.from, tt.to, err)
			}
			if p.Status != tt.to {
				t.Fatalf("status = %s, want %s", p.Status, tt.to)
			}
		})
	}
}

func TestCalibrationValidate(t *testing.T) {
	t.Parallel()

	valid := Calibration{Scale: 0.5, OffsetX: -3, OffsetY: 12, Rotation: 270}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	for _, scale := range []float64{0, -1} {
		cal := Calibration{Scale: scale}
		if err := cal.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("Validate() with scale %g error = %v, want ErrValidation", scale, err)
		}
	}
}

func TestProjectValidate(t *testing.T) {
	t.Parallel()

	base := Project{
		SourceData: []byte{0x89, 0x50},
		Width:      800,
		Height:     600,
		Status:     ProjectStatusUploaded,
	}

	tests := []struct {
		name    string
		mutate  func(*Project)
		wantErr bool
	}{
		{
			name:   "valid project",
			mutate: func(p *Project) {},
		},
		{
			name: "missing source data",
			mutate: func(p *Project) {
				p.SourceData = nil
			},
			wantErr: true,
		},
		{
			name: "zero width",
			mutate: func(p *Project) {
				p.Width = 0
			},
			wantErr: true,
		},
		{
			name: "invalid status",
			mutate: func(p *Project) {
				p.Status = ProjectStatus("DRAFT")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := base
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
