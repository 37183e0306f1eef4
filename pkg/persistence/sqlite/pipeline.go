package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
)

// CreatePipeline inserts a new pipeline and returns it with its assigned id.
func (p *Persistence) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) (*models.Pipeline, error) {
	now := time.Now().UTC()
	pipeline.CreatedAt = now
	pipeline.UpdatedAt = now

	if pipeline.Status == "" {
		pipeline.Status = models.PipelineStatusPending
	}

	query := `
		INSERT INTO pipelines (name, description, status, created_at, updated_at, records_processed)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := p.db.ExecContext(ctx, query,
		pipeline.Name,
		nullString(pipeline.Description),
		string(pipeline.Status),
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
		pipeline.RecordsProcessed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pipeline: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted pipeline id: %w", err)
	}

	pipeline.ID = id

	return pipeline, nil
}

// PipelineByID returns one pipeline or persistence.ErrPipelineNotFound.
func (p *Persistence) PipelineByID(ctx context.Context, id int64) (*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , created_at
		  , updated_at
		  , completed_at
		  , input_file
		  , output_file
		  , records_processed
		  , error_message
		FROM pipelines
		WHERE id = ?
	`

	pipeline, err := scanPipeline(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPipelineError("PipelineByID", id, persistence.ErrPipelineNotFound)
		}

		return nil, fmt.Errorf("failed to scan pipeline: %w", err)
	}

	return pipeline, nil
}

// Pipelines lists runs ordered by created_at descending.
func (p *Persistence) Pipelines(ctx context.Context, offset, limit int) ([]*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , status
		  , created_at
		  , updated_at
		  , completed_at
		  , input_file
		  , output_file
		  , records_processed
		  , error_message
		FROM pipelines
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		pipeline, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return pipelines, nil
}

// UpdatePipeline persists the mutable run columns.
func (p *Persistence) UpdatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	pipeline.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE pipelines SET
			name = ?
		  , description = ?
		  , status = ?
		  , updated_at = ?
		  , completed_at = ?
		  , input_file = ?
		  , output_file = ?
		  , records_processed = ?
		  , error_message = ?
		WHERE id = ?
	`

	result, err := p.db.ExecContext(ctx, query,
		pipeline.Name,
		nullString(pipeline.Description),
		string(pipeline.Status),
		pipeline.UpdatedAt,
		nullTime(pipeline.CompletedAt),
		pipeline.InputFile,
		pipeline.OutputFile,
		pipeline.RecordsProcessed,
		pipeline.ErrorMessage,
		pipeline.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pipeline: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewPipelineError("UpdatePipeline", pipeline.ID, persistence.ErrPipelineNotFound)
	}

	return nil
}

// DeletePipeline removes a run; its stage rows go with it via the foreign
// key cascade.
func (p *Persistence) DeletePipeline(ctx context.Context, id int64) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewPipelineError("DeletePipeline", id, persistence.ErrPipelineNotFound)
	}

	return nil
}

// UpsertStage atomically inserts or updates the single row keyed by
// (pipeline_id, stage_name). started_at and completed_at stick once set;
// error_message is only replaced by a non-nil value.
func (p *Persistence) UpsertStage(ctx context.Context, stage *models.PipelineStage) error {
	query := `
		INSERT INTO pipeline_stages (pipeline_id, stage_name, status, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_id, stage_name) DO UPDATE SET
			status = excluded.status
		  , started_at = COALESCE(pipeline_stages.started_at, excluded.started_at)
		  , completed_at = COALESCE(pipeline_stages.completed_at, excluded.completed_at)
		  , error_message = COALESCE(excluded.error_message, pipeline_stages.error_message)
	`

	_, err := p.db.ExecContext(ctx, query,
		stage.PipelineID,
		string(stage.StageName),
		string(stage.Status),
		nullTime(stage.StartedAt),
		nullTime(stage.CompletedAt),
		stage.ErrorMessage,
	)
	if err != nil {
		return persistence.NewStageError("UpsertStage", stage.PipelineID, string(stage.StageName),
			fmt.Errorf("failed to upsert stage: %w", err))
	}

	return nil
}

// StagesByPipeline returns the existing stage rows for a run in fixed stage
// sequence order.
func (p *Persistence) StagesByPipeline(ctx context.Context, pipelineID int64) ([]*models.PipelineStage, error) {
	query := `
		SELECT
			id
		  , pipeline_id
		  , stage_name
		  , status
		  , started_at
		  , completed_at
		  , error_message
		FROM pipeline_stages
		WHERE pipeline_id = ?
	`

	rows, err := p.db.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline stages: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	stages := make([]*models.PipelineStage, 0)

	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline stage: %w", err)
		}

		stages = append(stages, stage)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating pipeline stages: %w", err)
	}

	sortStages(stages)

	return stages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row rowScanner) (*models.Pipeline, error) {
	var (
		pipeline    models.Pipeline
		description sql.NullString
		status      string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&pipeline.ID,
		&pipeline.Name,
		&description,
		&status,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
		&completedAt,
		&pipeline.InputFile,
		&pipeline.OutputFile,
		&pipeline.RecordsProcessed,
		&pipeline.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	pipeline.Description = description.String
	pipeline.Status = models.PipelineStatus(status)

	if completedAt.Valid {
		t := completedAt.Time
		pipeline.CompletedAt = &t
	}

	return &pipeline, nil
}

func scanStage(row rowScanner) (*models.PipelineStage, error) {
	var (
		stage       models.PipelineStage
		stageName   string
		status      string
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&stage.ID,
		&stage.PipelineID,
		&stageName,
		&status,
		&startedAt,
		&completedAt,
		&stage.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	stage.StageName = models.StageName(stageName)
	stage.Status = models.PipelineStatus(status)

	if startedAt.Valid {
		t := startedAt.Time
		stage.StartedAt = &t
	}

	if completedAt.Valid {
		t := completedAt.Time
		stage.CompletedAt = &t
	}

	stage.DeriveExecutionTime()

	return &stage, nil
}

func sortStages(stages []*models.PipelineStage) {
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].StageName.Order() < stages[j].StageName.Order()
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
