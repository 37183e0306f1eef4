// Package runner orchestrates one pipeline run: the five stages in fixed
// sequence, each wrapped in its retry policy, with failures recorded once
// after the retry budget is spent. A failed stage stops the run; later
// stages are never invoked.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/stages"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracing"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

// DefaultRecordCount is used when a trigger does not specify a batch size.
const DefaultRecordCount = 1000

// Config carries the runner's file locations and optional tracing.
type Config struct {
	InputDir  string
	OutputDir string

	// Seed makes generated batches reproducible when non-zero.
	Seed int64

	// Tracer is optional; runs are not traced when nil.
	Tracer trace.Tracer
}

// Result summarizes a successful run.
type Result struct {
	OutputFile       string
	RecordsProcessed int
	Duration         time.Duration
}

// Runner executes complete pipeline runs against a tracker.
type Runner struct {
	tracker   *tracker.Tracker
	generator *stages.Generator
	ingestor  *stages.Ingestor
	spark     *stages.SparkProcessor
	dbt       *stages.DBTTransformer
	exporter  *stages.Exporter
	tracer    trace.Tracer
	policies  map[models.StageName]stages.RetryPolicy
}

// New wires a runner around the tracker. Retry budgets follow the stage
// contract: the I/O-bound generation and ingestion stages retry, the pure
// transformation and export stages do not.
func New(t *tracker.Tracker, cfg Config) *Runner {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Runner{
		tracker:   t,
		generator: stages.NewGenerator(t, cfg.InputDir, cfg.Seed),
		ingestor:  stages.NewIngestor(t),
		spark:     stages.NewSparkProcessor(t),
		dbt:       stages.NewDBTTransformer(t),
		exporter:  stages.NewExporter(t, cfg.OutputDir),
		tracer:    tracer,
		policies: map[models.StageName]stages.RetryPolicy{
			models.StageDataGeneration: {MaxAttempts: 3, Delay: time.Second, Backoff: 2},
			models.StageDataIngestion:  {MaxAttempts: 4, Delay: time.Second, Backoff: 2},
		},
	}
}

// Run executes the full stage sequence for one pipeline. The run is marked
// running up front; stage completions drive the rest of the state machine,
// with the export stage's completion marking the run completed.
func (r *Runner) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, recordCount int) (*Result, error) {
	if recordCount <= 0 {
		recordCount = DefaultRecordCount
	}

	started := time.Now()

	ctx, span := tracing.StartSpan(ctx, r.tracer, "pipeline.run",
		attribute.Int64(tracing.PipelineIDKey, pipelineID),
		attribute.Int(tracing.RecordCountKey, recordCount),
	)
	defer span.End()

	logger = logger.With("pipeline_id", pipelineID)
	logger.InfoContext(ctx, "Starting pipeline run", "record_count", recordCount)

	err := r.tracker.UpdateStatus(ctx, pipelineID, tracker.StatusUpdate{
		Status: models.PipelineStatusRunning,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("failed to start pipeline %d: %w", pipelineID, err)
	}

	var inputFile string

	err = r.runStage(ctx, logger, pipelineID, models.StageDataGeneration, func(ctx context.Context) error {
		var stageErr error

		inputFile, stageErr = r.generator.Run(ctx, logger, pipelineID, recordCount)

		return stageErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	var records []models.Record

	err = r.runStage(ctx, logger, pipelineID, models.StageDataIngestion, func(ctx context.Context) error {
		var stageErr error

		records, stageErr = r.ingestor.Run(ctx, logger, pipelineID, inputFile)

		return stageErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	err = r.runStage(ctx, logger, pipelineID, models.StageSparkProcessing, func(ctx context.Context) error {
		var stageErr error

		records, stageErr = r.spark.Run(ctx, logger, pipelineID, records)

		return stageErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	err = r.runStage(ctx, logger, pipelineID, models.StageDBTTransformation, func(ctx context.Context) error {
		var stageErr error

		records, stageErr = r.dbt.Run(ctx, logger, pipelineID, records)

		return stageErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	var outputFile string

	err = r.runStage(ctx, logger, pipelineID, models.StageDataExport, func(ctx context.Context) error {
		var stageErr error

		outputFile, stageErr = r.exporter.Run(ctx, logger, pipelineID, records)

		return stageErr
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	duration := time.Since(started)

	logger.InfoContext(ctx, "Pipeline run completed",
		"output_file", outputFile,
		"records_processed", len(records),
		"duration", duration.String(),
	)

	return &Result{
		OutputFile:       outputFile,
		RecordsProcessed: len(records),
		Duration:         duration,
	}, nil
}

// runStage applies the stage's retry policy and, once the budget is spent,
// records the failure exactly once so retries in between never wedge the
// run into a terminal state.
func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, pipelineID int64, name models.StageName, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, r.tracer, "pipeline.stage",
		attribute.Int64(tracing.PipelineIDKey, pipelineID),
		attribute.String(tracing.StageNameKey, string(name)),
	)
	defer span.End()

	policy, ok := r.policies[name]
	if !ok {
		policy = stages.RetryPolicy{MaxAttempts: 1}
	}

	err := policy.Do(ctx, logger, fn)
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	r.recordFailure(ctx, logger, pipelineID, name, err)

	return err
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, pipelineID int64, name models.StageName, err error) {
	var stageErr *stages.StageError
	if errors.As(err, &stageErr) {
		name = stageErr.Stage
	}

	logger.ErrorContext(ctx, "Stage failed",
		"stage", string(name),
		"error", err,
	)

	updateErr := r.tracker.UpdateStatus(ctx, pipelineID, tracker.StatusUpdate{
		StageName: name,
		Status:    models.PipelineStatusFailed,
		Message:   err.Error(),
	})
	if updateErr != nil {
		logger.ErrorContext(ctx, "Failed to record stage failure",
			"stage", string(name),
			"error", updateErr,
		)
	}
}
