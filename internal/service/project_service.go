package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/layout"
	"github.com/tilepress/tilepress/internal/observability"
	"github.com/tilepress/tilepress/internal/render"
	"github.com/tilepress/tilepress/internal/repository"
)

const defaultProjectName = "untitled map"

type ProjectService struct {
	projects repository.ProjectRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

type UploadParams struct {
	Name        string
	ContentType string
	Data        []byte
}

func NewProjectService(
	projects repository.ProjectRepository,
	logger *zap.Logger,
) (*ProjectService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProjectService{
		projects: projects,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *ProjectService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Upload validates and stores a new map raster. The project starts in
// UPLOADED with default style settings and an identity calibration.
func (s *ProjectService) Upload(ctx context.Context, params UploadParams) (*domain.Project, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	format, width, height, err := decodeImageBounds(params.Data)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = defaultProjectName
	}

	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: "image/" + format,
		SourceData:  params.Data,
		Width:       width,
		Height:      height,
		Calibration: domain.Calibration{Scale: 1},
		Settings:    domain.DefaultStyleSettings(),
		Status:      domain.ProjectStatusUploaded,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project uploaded",
		zap.String("projectId", project.ID),
		zap.String("format", format),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return project, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrValidation)
	}
	return s.projects.GetByID(ctx, strings.TrimSpace(id))
}

func (s *ProjectService) List(ctx context.Context, params repository.ListParams) ([]domain.Project, int64, error) {
	return s.projects.List(ctx, params)
}

// Calibrate stores the pixel mapping and moves the project to
// CALIBRATED. Recalibrating a CALIBRATED or COMPLETED project is
// allowed; a project mid-generation is not.
func (s *ProjectService) Calibrate(ctx context.Context, id string, cal domain.Calibration) (*domain.Project, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := project.Transition(domain.ProjectStatusCalibrated); err != nil {
		return nil, err
	}

	if err := s.projects.UpdateCalibration(ctx, project.ID, cal, project.Status); err != nil {
		return nil, err
	}
	project.Calibration = cal
	return project, nil
}

func (s *ProjectService) UpdateSettings(ctx context.Context, id string, settings domain.StyleSettings) (*domain.Project, error) {
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status == domain.ProjectStatusProcessing {
		return nil, fmt.Errorf("%w: cannot change settings while a document is being generated", domain.ErrConflict)
	}

	if err := s.projects.UpdateSettings(ctx, project.ID, settings); err != nil {
		return nil, err
	}
	project.Settings = settings
	return project, nil
}

// GenerateDocument runs the full pipeline for one project: claim
// CALIBRATED→PROCESSING, decode, lay out, render, store the artifact as
// COMPLETED. Any pipeline failure reverts the project to UPLOADED so it
// must be recalibrated before a retry, and leaves no artifact behind.
func (s *ProjectService) GenerateDocument(ctx context.Context, id string) (*domain.Project, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status != domain.ProjectStatusCalibrated {
		return nil, fmt.Errorf("%w: project must be calibrated before generating a document (status %s)",
			domain.ErrPrecondition, project.Status)
	}

	if err := s.projects.TransitionStatus(ctx, project.ID, domain.ProjectStatusCalibrated, domain.ProjectStatusProcessing); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: project was claimed by another generation", domain.ErrPrecondition)
		}
		return nil, err
	}
	project.Status = domain.ProjectStatusProcessing

	start := s.now()
	artifact, pages, err := s.renderProject(project)
	if err != nil {
		s.logger.Error("document generation failed",
			zap.String("projectId", project.ID),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncDocumentFailed()
		}
		if revertErr := s.projects.TransitionStatus(ctx, project.ID, domain.ProjectStatusProcessing, domain.ProjectStatusUploaded); revertErr != nil {
			s.logger.Error("failed to revert project after generation error",
				zap.String("projectId", project.ID),
				zap.Error(revertErr),
			)
		}
		project.Status = domain.ProjectStatusUploaded
		return nil, err
	}

	if err := s.projects.SaveArtifact(ctx, project.ID, artifact); err != nil {
		s.logger.Error("failed to store generated document",
			zap.String("projectId", project.ID),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncDocumentFailed()
		}
		// Same revert as the render error path: a project must never be
		// left in PROCESSING, which no API operation can act on.
		if revertErr := s.projects.TransitionStatus(ctx, project.ID, domain.ProjectStatusProcessing, domain.ProjectStatusUploaded); revertErr != nil {
			s.logger.Error("failed to revert project after store error",
				zap.String("projectId", project.ID),
				zap.Error(revertErr),
			)
		}
		project.Status = domain.ProjectStatusUploaded
		return nil, fmt.Errorf("failed to store generated document: %w", err)
	}
	project.Status = domain.ProjectStatusCompleted
	project.Artifact = artifact
	project.ArtifactSize = int64(len(artifact))

	if s.metrics != nil {
		s.metrics.IncDocumentGenerated()
		s.metrics.AddPagesRendered(pages)
		s.metrics.ObserveGenerationDuration(s.now().Sub(start))
	}
	s.logger.Info("document generated",
		zap.String("projectId", project.ID),
		zap.Int("pages", pages),
		zap.Int64("bytes", project.ArtifactSize),
	)
	return project, nil
}

// GetDocument returns the stored PDF artifact.
func (s *ProjectService) GetDocument(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status != domain.ProjectStatusCompleted || len(project.Artifact) == 0 {
		return nil, fmt.Errorf("%w: no generated document for project (status %s)",
			domain.ErrPrecondition, project.Status)
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrValidation)
	}
	return s.projects.Delete(ctx, strings.TrimSpace(id))
}

func (s *ProjectService) renderProject(project *domain.Project) ([]byte, int, error) {
	src, _, err := image.Decode(bytes.NewReader(project.SourceData))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to decode source image: %v", domain.ErrProcessing, err)
	}

	grid, err := layout.Compute(project.Width, project.Height, project.Calibration.Scale, project.Settings.PaperSize.String())
	if err != nil {
		return nil, 0, err
	}

	settings := project.Settings
	if settings.AverageBackgroundColor {
		settings.BackgroundColor = averageColorHex(src)
	}

	var buf bytes.Buffer
	pages, err := render.RenderDocument(&buf, src, grid, settings)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to render document: %v", domain.ErrProcessing, err)
	}
	return buf.Bytes(), pages, nil
}

// decodeImageBounds validates upload bytes without decoding the full
// raster.
func decodeImageBounds(data []byte) (string, int, int, error) {
	if len(data) == 0 {
		return "", 0, 0, fmt.Errorf("%w: image file is required", domain.ErrValidation)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: unsupported or corrupt image: %v", domain.ErrValidation, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", 0, 0, fmt.Errorf("%w: image dimensions must be positive (got %dx%d)", domain.ErrValidation, cfg.Width, cfg.Height)
	}
	return format, cfg.Width, cfg.Height, nil
}

// averageColorHex samples the source on a coarse grid; exact averages
// do not matter for a paper background tint.
func averageColorHex(img image.Image) string {
	bounds := img.Bounds()
	stepX := max(bounds.Dx()/64, 1)
	stepY := max(bounds.Dy()/64, 1)

	var rSum, gSum, bSum, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return "#ffffff"
	}
	return fmt.Sprintf("#%02x%02x%02x", rSum/n, gSum/n, bSum/n)
}
