package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tilepress/tilepress/internal/domain"
)

type fakeRunner struct {
	ran chan string
}

func (f *fakeRunner) Run(ctx context.Context, jobID string) {
	f.ran <- jobID
}

func TestExecutorRunsEnqueuedJobs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{ran: make(chan string, 2)}
	exec, err := NewExecutor(runner, 2, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- exec.Start(ctx)
	}()

	if err := exec.Enqueue("j1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := exec.Enqueue("j2"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	for _, want := range []string{"j1", "j2"} {
		select {
		case got := <-runner.ran:
			if got != want {
				t.Fatalf("ran %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not stop on context cancellation")
	}
}

func TestExecutorEnqueueFullQueue(t *testing.T) {
	t.Parallel()

	// Worker not started; the buffer is the whole capacity.
	exec, err := NewExecutor(&fakeRunner{ran: make(chan string, 1)}, 1, nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	if depth, capacity := exec.QueueDepth(); depth != 0 || capacity != 1 {
		t.Fatalf("QueueDepth() = %d/%d, want 0/1", depth, capacity)
	}

	if err := exec.Enqueue("j1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := exec.Enqueue("j2"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Enqueue() on full queue error = %v, want ErrConflict", err)
	}

	if depth, capacity := exec.QueueDepth(); depth != 1 || capacity != 1 {
		t.Fatalf("QueueDepth() = %d/%d, want 1/1", depth, capacity)
	}
}

func TestNewExecutorRequiresRunner(t *testing.T) {
	t.Parallel()

	if _, err := NewExecutor(nil, 1, nil); err == nil {
		t.Fatal("NewExecutor(nil) expected error")
	}
}
