package domain

import "errors"

// Sentinel errors shared across layers. Services wrap these with %w so
// callers can classify failures with errors.Is.
var (
	// ErrValidation marks malformed input: unusable images, bad
	// calibration values, out-of-range style settings.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing project or batch job.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition marks an operation attempted from the wrong
	// lifecycle state, e.g. generating a document for a project that is
	// not calibrated or starting a batch that is not pending.
	ErrPrecondition = errors.New("precondition failed")

	// ErrProcessing marks a crop or render failure while assembling a
	// document. It is recovered locally: the project falls back to
	// UPLOADED and, in batch context, the member is counted as failed.
	ErrProcessing = errors.New("processing failed")

	// ErrConflict marks an operation rejected because of concurrent or
	// repeated modification.
	ErrConflict = errors.New("conflict")
)
