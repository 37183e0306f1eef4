// Package persistence provides the data storage abstraction for pipeline
// runs and their stage rows.
package persistence

import (
	"context"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
)

// Persistence is the storage contract consumed by the tracker. Every write
// is scoped to a single pipeline so concurrent runs never contend on each
// other's rows.
type Persistence interface {
	// CreatePipeline inserts a new pipeline and returns it with its
	// store-assigned identity and timestamps populated.
	CreatePipeline(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error)

	// PipelineByID returns ErrPipelineNotFound when no row exists.
	PipelineByID(ctx context.Context, id int64) (*models.Pipeline, error)

	// Pipelines lists runs ordered by created_at descending.
	Pipelines(ctx context.Context, offset, limit int) ([]*models.Pipeline, error)

	// UpdatePipeline persists the mutable run columns (status, timestamps,
	// file handles, records_processed, error_message).
	UpdatePipeline(ctx context.Context, pipeline *models.Pipeline) error

	// DeletePipeline removes a run and its stage rows.
	DeletePipeline(ctx context.Context, id int64) error

	// UpsertStage atomically inserts or updates the single row keyed by
	// (pipeline_id, stage_name). An existing started_at or completed_at is
	// never overwritten, and an existing error_message is only replaced by
	// a non-nil one.
	UpsertStage(ctx context.Context, stage *models.PipelineStage) error

	// StagesByPipeline returns the stage rows that exist for a run, in
	// fixed stage sequence order.
	StagesByPipeline(ctx context.Context, pipelineID int64) ([]*models.PipelineStage, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
