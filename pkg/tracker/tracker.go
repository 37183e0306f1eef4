// Package tracker implements the pipeline status state machine. It is the
// single source of truth for run and stage status: every stage reports here
// before and after doing work, and the dashboard reads from here.
//
// Per-run transitions are monotonic: pending -> running -> {completed,
// failed}. Terminal states absorb; a late update against a terminal run is
// accepted but never regresses the run's status.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
)

var (
	// ErrInvalidStatus indicates a status outside the known set.
	ErrInvalidStatus = errors.New("invalid pipeline status")

	// ErrPipelineNotFound mirrors the persistence sentinel so callers can
	// depend on the tracker package alone.
	ErrPipelineNotFound = persistence.ErrPipelineNotFound
)

// Tracker owns the Pipeline and PipelineStage entities.
type Tracker struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// New creates a tracker on top of a persistence layer.
func New(p persistence.Persistence, logger *slog.Logger) *Tracker {
	return &Tracker{
		persistence: p,
		logger:      logger.With("module", "tracker"),
	}
}

// StatusUpdate carries one status report. StageName scopes the update to a
// single stage row; without it the update applies to the run itself.
type StatusUpdate struct {
	StageName        models.StageName
	Status           models.PipelineStatus
	Message          string
	RecordsProcessed *int
}

// CreatePipeline inserts a new run with status pending.
func (t *Tracker) CreatePipeline(ctx context.Context, name, description string) (*models.Pipeline, error) {
	pipeline := &models.Pipeline{
		Name:        name,
		Description: description,
		Status:      models.PipelineStatusPending,
	}

	created, err := t.persistence.CreatePipeline(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	t.logger.InfoContext(ctx, "Pipeline created", "pipeline_id", created.ID, "name", created.Name)

	return created, nil
}

// UpdateStatus applies one status report. Stage rows are created lazily on
// their first report and upserted afterwards; started_at is set exactly once
// (a retry re-entering at running keeps the original start time), and
// completed_at is set when the stage reaches a terminal status. A failed
// stage propagates failure to the run. A terminal run never changes status
// again.
func (t *Tracker) UpdateStatus(ctx context.Context, pipelineID int64, update StatusUpdate) error {
	if update.Status != "" && !update.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, update.Status)
	}

	pipeline, err := t.persistence.PipelineByID(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to load pipeline %d: %w", pipelineID, err)
	}

	now := time.Now().UTC()

	if update.StageName != "" {
		err = t.applyStageUpdate(ctx, pipeline, update, now)
		if err != nil {
			return err
		}
	} else if update.Status != "" {
		t.applyPipelineStatus(pipeline, update.Status, update.Message, now)
	}

	if update.RecordsProcessed != nil {
		// Last write wins; only the export stage is expected to set this.
		pipeline.RecordsProcessed = *update.RecordsProcessed
	}

	err = t.persistence.UpdatePipeline(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to update pipeline %d: %w", pipelineID, err)
	}

	return nil
}

func (t *Tracker) applyStageUpdate(ctx context.Context, pipeline *models.Pipeline, update StatusUpdate, now time.Time) error {
	if !update.StageName.IsValid() {
		return fmt.Errorf("%w: %q", persistence.ErrInvalidStageName, update.StageName)
	}

	status := update.Status
	if status == "" {
		status = models.PipelineStatusPending
	}

	stage := &models.PipelineStage{
		PipelineID: pipeline.ID,
		StageName:  update.StageName,
		Status:     status,
	}

	if status == models.PipelineStatusRunning {
		// The upsert keeps an existing started_at, so re-entries after a
		// retry do not clobber the original start time.
		stage.StartedAt = &now
	}

	if status.IsTerminal() {
		stage.CompletedAt = &now
	}

	if update.Message != "" && status == models.PipelineStatusFailed {
		message := update.Message
		stage.ErrorMessage = &message
	}

	err := t.persistence.UpsertStage(ctx, stage)
	if err != nil {
		return fmt.Errorf("failed to upsert stage %q: %w", update.StageName, err)
	}

	if update.Message != "" && status != models.PipelineStatusFailed {
		t.logger.InfoContext(ctx, "Stage status updated",
			"pipeline_id", pipeline.ID,
			"stage", string(update.StageName),
			"status", string(status),
			"message", update.Message,
		)
	}

	switch {
	case status == models.PipelineStatusFailed:
		t.applyPipelineStatus(pipeline, models.PipelineStatusFailed, update.Message, now)
	case status == models.PipelineStatusCompleted && update.StageName == models.StageDataExport:
		t.applyPipelineStatus(pipeline, models.PipelineStatusCompleted, "", now)
	case status == models.PipelineStatusRunning && pipeline.Status == models.PipelineStatusPending:
		t.applyPipelineStatus(pipeline, models.PipelineStatusRunning, "", now)
	}

	return nil
}

// applyPipelineStatus mutates the run's status in memory, honoring terminal
// monotonicity. The caller persists the pipeline afterwards.
func (t *Tracker) applyPipelineStatus(pipeline *models.Pipeline, status models.PipelineStatus, message string, now time.Time) {
	if pipeline.Status.IsTerminal() {
		t.logger.Warn("Ignoring status change on terminal pipeline",
			"pipeline_id", pipeline.ID,
			"current", string(pipeline.Status),
			"requested", string(status),
		)

		return
	}

	pipeline.Status = status

	if status.IsTerminal() {
		pipeline.CompletedAt = &now
	}

	// The first failure message sticks; it is never cleared.
	if message != "" && status == models.PipelineStatusFailed && pipeline.ErrorMessage == nil {
		pipeline.ErrorMessage = &message
	}
}

// GetPipeline returns one run.
func (t *Tracker) GetPipeline(ctx context.Context, id int64) (*models.Pipeline, error) {
	pipeline, err := t.persistence.PipelineByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return pipeline, nil
}

// ListPipelines returns runs ordered by created_at descending.
func (t *Tracker) ListPipelines(ctx context.Context, offset, limit int) ([]*models.Pipeline, error) {
	if limit <= 0 {
		limit = 100
	}

	return t.persistence.Pipelines(ctx, offset, limit)
}

// GetStages returns the stage rows that exist for a run, in fixed stage
// sequence order. Stages that were never invoked have no row.
func (t *Tracker) GetStages(ctx context.Context, pipelineID int64) ([]*models.PipelineStage, error) {
	_, err := t.persistence.PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	stages, err := t.persistence.StagesByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	for _, stage := range stages {
		stage.DeriveExecutionTime()
	}

	return stages, nil
}

// SetInputFile records the input artifact handle on the run.
func (t *Tracker) SetInputFile(ctx context.Context, pipelineID int64, handle string) error {
	return t.setFile(ctx, pipelineID, handle, true)
}

// SetOutputFile records the output artifact handle on the run.
func (t *Tracker) SetOutputFile(ctx context.Context, pipelineID int64, handle string) error {
	return t.setFile(ctx, pipelineID, handle, false)
}

func (t *Tracker) setFile(ctx context.Context, pipelineID int64, handle string, input bool) error {
	pipeline, err := t.persistence.PipelineByID(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to load pipeline %d: %w", pipelineID, err)
	}

	if input {
		pipeline.InputFile = &handle
	} else {
		pipeline.OutputFile = &handle
	}

	err = t.persistence.UpdatePipeline(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to update pipeline %d: %w", pipelineID, err)
	}

	return nil
}

// HealthCheck reports on the underlying store.
func (t *Tracker) HealthCheck(ctx context.Context) (string, bool) {
	err := t.persistence.HealthCheck(ctx)
	if err != nil {
		return "Status store is unhealthy: " + err.Error(), false
	}

	return "Status store is healthy", true
}
