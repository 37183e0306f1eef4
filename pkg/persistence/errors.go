// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPipelineNotFound indicates a pipeline was not found by the given
	// identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrStageNotFound indicates no stage row exists for the given
	// (pipeline, stage name) pair.
	ErrStageNotFound = errors.New("pipeline stage not found")

	// ErrInvalidStageName indicates a stage name outside the fixed
	// five-step sequence.
	ErrInvalidStageName = errors.New("invalid stage name")
)

// PipelineError wraps pipeline-related persistence errors with context.
type PipelineError struct {
	Op         string // Operation being performed (e.g. "PipelineByID", "UpsertStage")
	PipelineID int64
	StageName  string // Stage name if applicable
	Err        error
}

func (e *PipelineError) Error() string {
	if e.StageName != "" {
		return fmt.Sprintf("%s failed for stage %q of pipeline %d: %v", e.Op, e.StageName, e.PipelineID, e.Err)
	}

	return fmt.Sprintf("%s failed for pipeline %d: %v", e.Op, e.PipelineID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a new pipeline error with context.
func NewPipelineError(op string, pipelineID int64, err error) *PipelineError {
	return &PipelineError{Op: op, PipelineID: pipelineID, Err: err}
}

// NewStageError creates a new pipeline error scoped to one stage row.
func NewStageError(op string, pipelineID int64, stageName string, err error) *PipelineError {
	return &PipelineError{Op: op, PipelineID: pipelineID, StageName: stageName, Err: err}
}

// IsPipelineNotFound checks if an error indicates a pipeline was not found.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsStageNotFound checks if an error indicates a stage row was not found.
func IsStageNotFound(err error) bool {
	return errors.Is(err, ErrStageNotFound)
}
