// Package stages implements the five units of work of the data flow and the
// uniform contract they share: report running on entry, do the work, report
// completed with a summary, or surface a typed StageError for the
// orchestration boundary to record and propagate.
package stages

import (
	"errors"
	"fmt"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
)

// ErrorKind classifies a stage failure for retry purposes.
type ErrorKind string

const (
	// KindValidation marks malformed or incomplete input. Fatal to the
	// stage once its retry budget is spent.
	KindValidation ErrorKind = "validation"

	// KindTransient marks I/O faults (file system, status store) worth
	// retrying up to the stage's limit.
	KindTransient ErrorKind = "transient"

	// KindNotFound marks a status update against an unknown pipeline.
	// Never retried; it indicates a caller bug.
	KindNotFound ErrorKind = "not_found"
)

// StageError is the single error type a stage surfaces. It is caught once
// at the orchestration boundary, recorded via the tracker, and re-raised.
type StageError struct {
	Stage models.StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its stage and kind.
func NewStageError(stage models.StageName, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Retryable reports whether a failed attempt may be re-entered. Not-found
// errors are never retried.
func Retryable(err error) bool {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind != KindNotFound
	}

	if errors.Is(err, persistence.ErrPipelineNotFound) {
		return false
	}

	return true
}
