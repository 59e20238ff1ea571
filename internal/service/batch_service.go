package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/observability"
	"github.com/tilepress/tilepress/internal/repository"
)

const (
	maxBatchFiles    = 100
	defaultBatchName = "untitled batch"
)

// allFilesFailedMessage is the job error message when no member
// produced a document.
const allFilesFailedMessage = "all files failed"

// DocumentGenerator runs the single-item pipeline for one project.
type DocumentGenerator interface {
	GenerateDocument(ctx context.Context, projectID string) (*domain.Project, error)
}

// JobQueue hands a job id to the background executor.
type JobQueue interface {
	Enqueue(jobID string) error
}

type BatchService struct {
	jobs      repository.BatchJobRepository
	projects  repository.ProjectRepository
	generator DocumentGenerator
	queue     JobQueue
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// BatchFile is one uploaded member of a batch create request.
type BatchFile struct {
	Name string
	Data []byte
}

type CreateBatchParams struct {
	Name     string
	Files    []BatchFile
	Settings domain.StyleSettings
}

func NewBatchService(
	jobs repository.BatchJobRepository,
	projects repository.ProjectRepository,
	generator DocumentGenerator,
	queue JobQueue,
	logger *zap.Logger,
) (*BatchService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		jobs:      jobs,
		projects:  projects,
		generator: generator,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *BatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SetQueue attaches the executor after construction: the executor runs
// this service, so the two cannot be built in one pass.
func (s *BatchService) SetQueue(queue JobQueue) {
	if s == nil {
		return
	}
	s.queue = queue
}

// CreateJob stores one project per usable uploaded file plus the job
// row holding the shared settings snapshot. Files that cannot be
// decoded are skipped with a warning; a request with zero usable files
// is rejected. Members are created CALIBRATED at scale 1 so the job can
// be started without touching each project first.
func (s *BatchService) CreateJob(ctx context.Context, params CreateBatchParams) (*domain.BatchJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(params.Files) == 0 {
		return nil, fmt.Errorf("%w: batch must include at least one file", domain.ErrValidation)
	}
	if len(params.Files) > maxBatchFiles {
		return nil, fmt.Errorf("%w: batch size exceeds %d files", domain.ErrValidation, maxBatchFiles)
	}

	settings := params.Settings
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = defaultBatchName
	}

	jobID := uuid.NewString()

	projects := make([]*domain.Project, 0, len(params.Files))
	for _, file := range params.Files {
		format, width, height, err := decodeImageBounds(file.Data)
		if err != nil {
			s.logger.Warn("skipping unusable batch file",
				zap.String("jobId", jobID),
				zap.String("file", file.Name),
				zap.Error(err),
			)
			continue
		}

		memberName := strings.TrimSpace(file.Name)
		if memberName == "" {
			memberName = defaultProjectName
		}
		position := len(projects)
		projects = append(projects, &domain.Project{
			ID:            uuid.NewString(),
			Name:          memberName,
			ContentType:   "image/" + format,
			SourceData:    file.Data,
			Width:         width,
			Height:        height,
			Calibration:   domain.Calibration{Scale: 1},
			Settings:      settings,
			Status:        domain.ProjectStatusCalibrated,
			BatchID:       &jobID,
			BatchPosition: &position,
		})
	}

	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: no usable files in batch", domain.ErrValidation)
	}

	job := &domain.BatchJob{
		ID:         jobID,
		Name:       name,
		Status:     domain.BatchStatusPending,
		TotalFiles: len(projects),
		Settings:   settings,
		ProjectIDs: make([]string, 0, len(projects)),
	}
	for _, p := range projects {
		job.ProjectIDs = append(job.ProjectIDs, p.ID)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	for _, p := range projects {
		if err := s.projects.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to store batch member %q: %w", p.Name, err)
		}
	}

	s.logger.Info("batch job created",
		zap.String("jobId", job.ID),
		zap.Int("totalFiles", job.TotalFiles),
		zap.Int("skipped", len(params.Files)-job.TotalFiles),
	)
	return job, nil
}

func (s *BatchService) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: batch job id is required", domain.ErrValidation)
	}
	return s.jobs.GetByID(ctx, strings.TrimSpace(id))
}

// StartJob moves the job to RUNNING and hands it to the executor.
// Starting anything but a PENDING job is rejected, so a job runs at
// most once.
func (s *BatchService) StartJob(ctx context.Context, id string) (*domain.BatchJob, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("batch executor is not attached")
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := job.Transition(domain.BatchStatusRunning); err != nil {
		return nil, err
	}

	if err := s.jobs.TransitionStatus(ctx, job.ID, domain.BatchStatusPending, domain.BatchStatusRunning); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		// The job is already RUNNING and cannot go back to PENDING;
		// close it out as failed rather than leaving it stuck.
		s.logger.Error("failed to enqueue batch job",
			zap.String("jobId", job.ID),
			zap.Error(err),
		)
		message := "executor unavailable"
		if finErr := s.jobs.Finalize(ctx, job.ID, domain.BatchStatusFailed, &message, s.now().UTC()); finErr != nil {
			s.logger.Error("failed to finalize unqueued batch job",
				zap.String("jobId", job.ID),
				zap.Error(finErr),
			)
		}
		return nil, fmt.Errorf("failed to enqueue batch job: %w", err)
	}

	return job, nil
}

// Run processes every member of a RUNNING job in creation order. Each
// member is generated through the single-item pipeline; progress
// counters are persisted after every member so a poll sees them move.
// The terminal status depends only on the counters: COMPLETED when at
// least one member produced a document, FAILED otherwise.
func (s *BatchService) Run(ctx context.Context, jobID string) {
	if ctx == nil {
		ctx = context.Background()
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to load batch job for processing",
			zap.String("jobId", jobID),
			zap.Error(err),
		)
		return
	}
	if job.Status != domain.BatchStatusRunning {
		s.logger.Warn("skipping batch job not in RUNNING",
			zap.String("jobId", jobID),
			zap.String("status", job.Status.String()),
		)
		return
	}

	processed := 0
	failed := 0
	for _, projectID := range job.ProjectIDs {
		if _, err := s.generator.GenerateDocument(ctx, projectID); err != nil {
			failed++
			s.logger.Warn("batch member failed",
				zap.String("jobId", jobID),
				zap.String("projectId", projectID),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.IncBatchItem("failed")
			}
			if err := s.jobs.IncrementCounters(ctx, jobID, 0, 1); err != nil {
				s.logger.Error("failed to persist batch counters",
					zap.String("jobId", jobID),
					zap.Error(err),
				)
			}
			continue
		}

		processed++
		if s.metrics != nil {
			s.metrics.IncBatchItem("processed")
		}
		if err := s.jobs.IncrementCounters(ctx, jobID, 1, 0); err != nil {
			s.logger.Error("failed to persist batch counters",
				zap.String("jobId", jobID),
				zap.Error(err),
			)
		}
	}

	status := domain.BatchStatusCompleted
	var message *string
	if processed == 0 {
		status = domain.BatchStatusFailed
		m := allFilesFailedMessage
		message = &m
	}

	job.ProcessedFiles = processed
	job.FailedFiles = failed
	job.Status = status
	if err := job.CheckCounters(); err != nil {
		s.logger.Error("batch counters out of balance",
			zap.String("jobId", jobID),
			zap.Error(err),
		)
	}

	if err := s.jobs.Finalize(ctx, jobID, status, message, s.now().UTC()); err != nil {
		s.logger.Error("failed to finalize batch job",
			zap.String("jobId", jobID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("batch job finished",
		zap.String("jobId", jobID),
		zap.String("status", status.String()),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
	)
}

// Delete removes a non-running job and detaches its member projects.
// The members themselves, including any generated documents, are kept.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.jobs.Delete(ctx, job.ID); err != nil {
		return err
	}
	if err := s.projects.DetachBatch(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to detach batch members: %w", err)
	}
	return nil
}
