package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tilepress/tilepress/internal/domain"
)

const defaultExecutorQueueSize = 64

// BatchRunner processes one enqueued job to completion.
type BatchRunner interface {
	Run(ctx context.Context, jobID string)
}

// Executor is the in-process job queue. A single worker drains a
// buffered channel, so jobs run strictly one at a time in enqueue
// order; progress is observable only through the persisted job state.
type Executor struct {
	runner BatchRunner
	jobs   chan string
	logger *zap.Logger
}

func NewExecutor(runner BatchRunner, queueSize int, logger *zap.Logger) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	if queueSize < 1 {
		queueSize = defaultExecutorQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		runner: runner,
		jobs:   make(chan string, queueSize),
		logger: logger,
	}, nil
}

// Enqueue hands a job id to the worker without blocking. A full queue
// is reported as ErrConflict so the caller can fail the job instead of
// stalling the request.
func (e *Executor) Enqueue(jobID string) error {
	select {
	case e.jobs <- jobID:
		return nil
	default:
		return fmt.Errorf("%w: executor queue is full", domain.ErrConflict)
	}
}

// QueueDepth reports the number of queued jobs and the queue capacity.
func (e *Executor) QueueDepth() (int, int) {
	return len(e.jobs), cap(e.jobs)
}

// Start drains the queue until context cancellation.
func (e *Executor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.logger.Info("batch executor started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("batch executor stopped")
			return nil
		case jobID := <-e.jobs:
			e.logger.Info("batch job dequeued", zap.String("jobId", jobID))
			e.runner.Run(ctx, jobID)
		}
	}
}
