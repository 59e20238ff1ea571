package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tilepress/tilepress/internal/domain"
)

func TestBatchServiceCreateJobSkipsUnusableFiles(t *testing.T) {
	t.Parallel()

	var createdJob *domain.BatchJob
	var createdProjects []*domain.Project
	jobs := &fakeBatchJobRepo{
		createFn: func(ctx context.Context, b *domain.BatchJob) error {
			createdJob = b
			return nil
		},
	}
	projects := &fakeProjectRepo{
		createFn: func(ctx context.Context, p *domain.Project) error {
			createdProjects = append(createdProjects, p)
			return nil
		},
	}

	svc, err := NewBatchService(jobs, projects, &fakeGenerator{}, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	settings := domain.DefaultStyleSettings()
	settings.GenerateBacksideNumbers = true

	job, err := svc.CreateJob(context.Background(), CreateBatchParams{
		Name: "campaign maps",
		Files: []BatchFile{
			{Name: "level1.png", Data: pngBytes(t, 30, 20)},
			{Name: "broken.png", Data: []byte("not an image")},
			{Name: "level2.png", Data: pngBytes(t, 10, 10)},
		},
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if job.Status != domain.BatchStatusPending {
		t.Fatalf("status = %s, want PENDING", job.Status)
	}
	if job.TotalFiles != 2 {
		t.Fatalf("totalFiles = %d, want 2", job.TotalFiles)
	}
	if createdJob == nil || len(createdJob.ProjectIDs) != 2 {
		t.Fatalf("expected job with 2 members, got %+v", createdJob)
	}
	if len(createdProjects) != 2 {
		t.Fatalf("created %d projects, want 2", len(createdProjects))
	}
	for i, p := range createdProjects {
		if p.Status != domain.ProjectStatusCalibrated {
			t.Errorf("member %d status = %s, want CALIBRATED", i, p.Status)
		}
		if p.Calibration.Scale != 1 {
			t.Errorf("member %d scale = %g, want 1", i, p.Calibration.Scale)
		}
		if !p.Settings.GenerateBacksideNumbers {
			t.Errorf("member %d did not receive the settings snapshot", i)
		}
		if p.BatchID == nil || *p.BatchID != job.ID {
			t.Errorf("member %d batch id = %v, want %s", i, p.BatchID, job.ID)
		}
		if p.BatchPosition == nil || *p.BatchPosition != i {
			t.Errorf("member %d position = %v, want %d", i, p.BatchPosition, i)
		}
	}
}

func TestBatchServiceCreateJobRejectsZeroUsableFiles(t *testing.T) {
	t.Parallel()

	svc, err := NewBatchService(&fakeBatchJobRepo{}, &fakeProjectRepo{}, &fakeGenerator{}, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	_, err = svc.CreateJob(context.Background(), CreateBatchParams{
		Files:    []BatchFile{{Name: "nope", Data: []byte("garbage")}},
		Settings: domain.DefaultStyleSettings(),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateJob() error = %v, want ErrValidation", err)
	}

	if _, err := svc.CreateJob(context.Background(), CreateBatchParams{Settings: domain.DefaultStyleSettings()}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateJob(no files) error = %v, want ErrValidation", err)
	}
}

func TestBatchServiceStartJob(t *testing.T) {
	t.Parallel()

	job := &domain.BatchJob{
		ID:         "j1",
		Status:     domain.BatchStatusPending,
		TotalFiles: 1,
		ProjectIDs: []string{"p1"},
	}
	transitioned := false
	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			copied := *job
			return &copied, nil
		},
		transitionStatusFn: func(ctx context.Context, id string, from, to domain.BatchStatus) error {
			if from != domain.BatchStatusPending || to != domain.BatchStatusRunning {
				t.Fatalf("transition %s→%s, want PENDING→RUNNING", from, to)
			}
			transitioned = true
			return nil
		},
	}
	queue := &fakeJobQueue{}

	svc, err := NewBatchService(jobs, &fakeProjectRepo{}, &fakeGenerator{}, queue, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	result, err := svc.StartJob(context.Background(), "j1")
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	if result.Status != domain.BatchStatusRunning {
		t.Fatalf("status = %s, want RUNNING", result.Status)
	}
	if !transitioned {
		t.Fatal("expected guarded transition")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "j1" {
		t.Fatalf("enqueued = %v, want [j1]", queue.enqueued)
	}

	job.Status = domain.BatchStatusRunning
	if _, err := svc.StartJob(context.Background(), "j1"); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("double StartJob() error = %v, want ErrPrecondition", err)
	}
}

func TestBatchServiceStartJobEnqueueFailureFailsJob(t *testing.T) {
	t.Parallel()

	var finalized *domain.BatchStatus
	var finalMessage *string
	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			return &domain.BatchJob{
				ID:         id,
				Status:     domain.BatchStatusPending,
				TotalFiles: 1,
				ProjectIDs: []string{"p1"},
			}, nil
		},
		finalizeFn: func(ctx context.Context, id string, status domain.BatchStatus, message *string, completedAt time.Time) error {
			finalized = &status
			finalMessage = message
			return nil
		},
	}
	queue := &fakeJobQueue{
		enqueueFn: func(jobID string) error {
			return errors.New("queue full")
		},
	}

	svc, err := NewBatchService(jobs, &fakeProjectRepo{}, &fakeGenerator{}, queue, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	if _, err := svc.StartJob(context.Background(), "j1"); err == nil {
		t.Fatal("StartJob() expected error, got nil")
	}
	if finalized == nil || *finalized != domain.BatchStatusFailed {
		t.Fatalf("finalized = %v, want FAILED", finalized)
	}
	if finalMessage == nil || *finalMessage == "" {
		t.Fatal("expected a failure message")
	}
}

func TestBatchServiceRunPersistsCountersPerItem(t *testing.T) {
	t.Parallel()

	var increments [][2]int
	var finalStatus domain.BatchStatus
	var finalMessage *string
	var completedAt time.Time
	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			return &domain.BatchJob{
				ID:         id,
				Status:     domain.BatchStatusRunning,
				TotalFiles: 3,
				ProjectIDs: []string{"p1", "p2", "p3"},
			}, nil
		},
		incrementFn: func(ctx context.Context, id string, processed, failed int) error {
			increments = append(increments, [2]int{processed, failed})
			return nil
		},
		finalizeFn: func(ctx context.Context, id string, status domain.BatchStatus, message *string, at time.Time) error {
			finalStatus = status
			finalMessage = message
			completedAt = at
			return nil
		},
	}

	var order []string
	generator := &fakeGenerator{
		generateFn: func(ctx context.Context, projectID string) (*domain.Project, error) {
			order = append(order, projectID)
			if projectID == "p2" {
				return nil, domain.ErrProcessing
			}
			return &domain.Project{ID: projectID, Status: domain.ProjectStatusCompleted}, nil
		},
	}

	svc, err := NewBatchService(jobs, &fakeProjectRepo{}, generator, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	svc.Run(context.Background(), "j1")

	if len(order) != 3 || order[0] != "p1" || order[1] != "p2" || order[2] != "p3" {
		t.Fatalf("processing order = %v, want [p1 p2 p3]", order)
	}
	want := [][2]int{{1, 0}, {0, 1}, {1, 0}}
	if len(increments) != len(want) {
		t.Fatalf("increments = %v, want %v", increments, want)
	}
	for i := range want {
		if increments[i] != want[i] {
			t.Fatalf("increment %d = %v, want %v", i, increments[i], want[i])
		}
	}
	if finalStatus != domain.BatchStatusCompleted {
		t.Fatalf("final status = %s, want COMPLETED", finalStatus)
	}
	if finalMessage != nil {
		t.Fatalf("error message = %v, want nil", *finalMessage)
	}
	if completedAt.IsZero() {
		t.Fatal("expected completedAt to be set")
	}
}

func TestBatchServiceRunAllFailed(t *testing.T) {
	t.Parallel()

	var finalStatus domain.BatchStatus
	var finalMessage *string
	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			return &domain.BatchJob{
				ID:         id,
				Status:     domain.BatchStatusRunning,
				TotalFiles: 2,
				ProjectIDs: []string{"p1", "p2"},
			}, nil
		},
		finalizeFn: func(ctx context.Context, id string, status domain.BatchStatus, message *string, at time.Time) error {
			finalStatus = status
			finalMessage = message
			return nil
		},
	}
	generator := &fakeGenerator{
		generateFn: func(ctx context.Context, projectID string) (*domain.Project, error) {
			return nil, domain.ErrProcessing
		},
	}

	svc, err := NewBatchService(jobs, &fakeProjectRepo{}, generator, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	svc.Run(context.Background(), "j1")

	if finalStatus != domain.BatchStatusFailed {
		t.Fatalf("final status = %s, want FAILED", finalStatus)
	}
	if finalMessage == nil || *finalMessage != allFilesFailedMessage {
		t.Fatalf("error message = %v, want %q", finalMessage, allFilesFailedMessage)
	}
}

func TestBatchServiceRunSkipsNonRunningJob(t *testing.T) {
	t.Parallel()

	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			return &domain.BatchJob{
				ID:         id,
				Status:     domain.BatchStatusCompleted,
				TotalFiles: 1,
				ProjectIDs: []string{"p1"},
			}, nil
		},
	}
	generator := &fakeGenerator{
		generateFn: func(ctx context.Context, projectID string) (*domain.Project, error) {
			t.Fatal("generator must not run for a terminal job")
			return nil, nil
		},
	}

	svc, err := NewBatchService(jobs, &fakeProjectRepo{}, generator, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	svc.Run(context.Background(), "j1")
}

func TestBatchServiceDeleteDetachesMembers(t *testing.T) {
	t.Parallel()

	deleted := false
	jobs := &fakeBatchJobRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BatchJob, error) {
			return &domain.BatchJob{ID: id, Status: domain.BatchStatusCompleted, TotalFiles: 1, ProjectIDs: []string{"p1"}}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	var detachedBatch string
	projects := &fakeProjectRepo{
		detachBatchFn: func(ctx context.Context, batchID string) error {
			detachedBatch = batchID
			return nil
		},
	}

	svc, err := NewBatchService(jobs, projects, &fakeGenerator{}, &fakeJobQueue{}, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	if err := svc.Delete(context.Background(), "j1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Fatal("expected job delete")
	}
	if detachedBatch != "j1" {
		t.Fatalf("detached batch = %q, want j1", detachedBatch)
	}
}

type fakeBatchJobRepo struct {
	createFn           func(ctx context.Context, b *domain.BatchJob) error
	getByIDFn          func(ctx context.Context, id string) (*domain.BatchJob, error)
	transitionStatusFn func(ctx context.Context, id string, from, to domain.BatchStatus) error
	incrementFn        func(ctx context.Context, id string, processed, failed int) error
	finalizeFn         func(ctx context.Context, id string, status domain.BatchStatus, message *string, completedAt time.Time) error
	deleteFn           func(ctx context.Context, id string) error
}

func (f *fakeBatchJobRepo) Create(ctx context.Context, b *domain.BatchJob) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchJobRepo) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchJobRepo) TransitionStatus(ctx context.Context, id string, from, to domain.BatchStatus) error {
	if f.transitionStatusFn != nil {
		return f.transitionStatusFn(ctx, id, from, to)
	}
	return nil
}

func (f *fakeBatchJobRepo) IncrementCounters(ctx context.Context, id string, processed, failed int) error {
	if f.incrementFn != nil {
		return f.incrementFn(ctx, id, processed, failed)
	}
	return nil
}

func (f *fakeBatchJobRepo) Finalize(ctx context.Context, id string, status domain.BatchStatus, message *string, completedAt time.Time) error {
	if f.finalizeFn != nil {
		return f.finalizeFn(ctx, id, status, message, completedAt)
	}
	return nil
}

func (f *fakeBatchJobRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeGenerator struct {
	generateFn func(ctx context.Context, projectID string) (*domain.Project, error)
}

func (f *fakeGenerator) GenerateDocument(ctx context.Context, projectID string) (*domain.Project, error) {
	if f.generateFn != nil {
		return f.generateFn(ctx, projectID)
	}
	return &domain.Project{ID: projectID, Status: domain.ProjectStatusCompleted}, nil
}

type fakeJobQueue struct {
	enqueueFn func(jobID string) error
	enqueued  []string
}

func (f *fakeJobQueue) Enqueue(jobID string) error {
	if f.enqueueFn != nil {
		return f.enqueueFn(jobID)
	}
	f.enqueued = append(f.enqueued, jobID)
	return nil
}
