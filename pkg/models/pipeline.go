// Package models defines the core domain models for pipeline run tracking.
package models

import "time"

// PipelineStatus represents the lifecycle state of a pipeline run or of a
// single stage within it.
type PipelineStatus string

const (
	PipelineStatusPending   PipelineStatus = "pending"
	PipelineStatusRunning   PipelineStatus = "running"
	PipelineStatusCompleted PipelineStatus = "completed"
	PipelineStatusFailed    PipelineStatus = "failed"
)

// IsTerminal reports whether no further status transitions are permitted.
func (s PipelineStatus) IsTerminal() bool {
	return s == PipelineStatusCompleted || s == PipelineStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s PipelineStatus) IsValid() bool {
	switch s {
	case PipelineStatusPending, PipelineStatusRunning, PipelineStatusCompleted, PipelineStatusFailed:
		return true
	}

	return false
}

// Pipeline represents one triggered run of the five-stage flow.
type Pipeline struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"                   validate:"required,min=3"`
	Description      string         `json:"description,omitempty"`
	Status           PipelineStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	InputFile        *string        `json:"input_file,omitempty"`
	OutputFile       *string        `json:"output_file,omitempty"`
	RecordsProcessed int            `json:"records_processed"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
}

// StageName identifies one named unit of work in the fixed five-step sequence.
type StageName string

const (
	StageDataGeneration    StageName = "Data Generation"
	StageDataIngestion     StageName = "Data Ingestion"
	StageSparkProcessing   StageName = "Spark Processing"
	StageDBTTransformation StageName = "DBT Transformation"
	StageDataExport        StageName = "Data Export"
)

// StageSequence is the fixed execution order of the flow. Stage rows are
// always reported in this order, never in insertion order.
var StageSequence = []StageName{
	StageDataGeneration,
	StageDataIngestion,
	StageSparkProcessing,
	StageDBTTransformation,
	StageDataExport,
}

// Order returns the position of the stage in the fixed sequence, or -1 for
// unknown stage names.
func (n StageName) Order() int {
	for i, name := range StageSequence {
		if name == n {
			return i
		}
	}

	return -1
}

// IsValid reports whether n is one of the five known stages.
func (n StageName) IsValid() bool {
	return n.Order() >= 0
}

// PipelineStage represents the status of one named stage within one run.
// There is at most one row per (pipeline_id, stage_name); the row is created
// lazily on the first status update for that stage and upserted afterwards.
type PipelineStage struct {
	ID           int64          `json:"id"`
	PipelineID   int64          `json:"pipeline_id"`
	StageName    StageName      `json:"stage_name"`
	Status       PipelineStatus `json:"status"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`

	// ExecutionTimeSeconds is derived from started_at/completed_at once
	// both are set. It is not a stored column.
	ExecutionTimeSeconds *float64 `json:"execution_time_seconds,omitempty"`
}

// DeriveExecutionTime populates ExecutionTimeSeconds when both timestamps
// are present.
func (s *PipelineStage) DeriveExecutionTime() {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return
	}

	seconds := s.CompletedAt.Sub(*s.StartedAt).Seconds()
	s.ExecutionTimeSeconds = &seconds
}
