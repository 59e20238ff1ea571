package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the processing state of a batch job. The
// lifecycle is strictly forward-moving: PENDING → RUNNING →
// COMPLETED|FAILED, with no path back to PENDING.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "PENDING"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusRunning, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending: {BatchStatusRunning},
	BatchStatusRunning: {BatchStatusCompleted, BatchStatusFailed},
}

func CanTransitionBatch(from, to BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BatchJob is a named, ordered collection of projects processed under
// one shared style configuration snapshot. Members are referenced by id
// only; the ordered list is fixed at creation.
type BatchJob struct {
	ID     string      `gorm:"type:uuid;primaryKey"`
	Name   string      `gorm:"type:varchar(255);not null"`
	Status BatchStatus `gorm:"type:varchar(20);not null"`

	TotalFiles     int `gorm:"not null"`
	ProcessedFiles int `gorm:"not null;default:0"`
	FailedFiles    int `gorm:"not null;default:0"`

	// Settings is copied at creation time, not a live reference: later
	// changes to a member project's own settings must not affect an
	// already-created job.
	Settings StyleSettings `gorm:"embedded;embeddedPrefix:style_"`

	ErrorMessage *string    `gorm:"type:text"`
	CompletedAt  *time.Time `gorm:"type:timestamptz"`

	// ProjectIDs holds the immutable ordered member list. Persisted via
	// the batch_items table, not as a column.
	ProjectIDs []string `gorm:"-"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *BatchJob) Validate() error {
	if b.TotalFiles <= 0 {
		return fmt.Errorf("%w: batch job must have at least one usable member", ErrValidation)
	}
	if len(b.ProjectIDs) != b.TotalFiles {
		return fmt.Errorf("%w: member count %d does not match totalFiles %d", ErrValidation, len(b.ProjectIDs), b.TotalFiles)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}

// Transition moves the job to the next lifecycle state, rejecting any
// edge not in the transition table. Double-starting a job is therefore
// rejected with ErrPrecondition.
func (b *BatchJob) Transition(to BatchStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: invalid target status %q", ErrValidation, to)
	}
	if !CanTransitionBatch(b.Status, to) {
		return fmt.Errorf("%w: cannot transition batch job from %s to %s", ErrPrecondition, b.Status, to)
	}
	b.Status = to
	return nil
}

// CheckCounters verifies the progress invariant
// processedFiles + failedFiles <= totalFiles, with equality required in
// terminal states.
func (b *BatchJob) CheckCounters() error {
	done := b.ProcessedFiles + b.FailedFiles
	if done > b.TotalFiles {
		return fmt.Errorf("%w: counters exceed total (%d+%d > %d)", ErrValidation, b.ProcessedFiles, b.FailedFiles, b.TotalFiles)
	}
	if b.Status.IsTerminal() && done != b.TotalFiles {
		return fmt.Errorf("%w: terminal job has unaccounted members (%d of %d)", ErrValidation, done, b.TotalFiles)
	}
	return nil
}
