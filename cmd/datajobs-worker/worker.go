// Package main provides the worker that executes pipeline runs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/kyletaylored/datadog-data-jobs/pkg/config"
	"github.com/kyletaylored/datadog-data-jobs/pkg/eventbus"
	"github.com/kyletaylored/datadog-data-jobs/pkg/events"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
	"github.com/kyletaylored/datadog-data-jobs/pkg/runner"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	runner   *runner.Runner
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	cfg config.WorkerConfig,
	tracer trace.Tracer,
) *WorkerManager {
	pipelineTracker := tracker.New(p, logger)

	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "datajobs-worker", "worker_id", id),
		eventBus: eventBus,
		runner: runner.New(pipelineTracker, runner.Config{
			InputDir:  cfg.InputDir,
			OutputDir: cfg.OutputDir,
			Seed:      cfg.Seed,
			Tracer:    tracer,
		}),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.PipelineTriggeredEvent, w.handlePipelineTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handlePipelineTriggered(ctx context.Context, event any) error {
	triggeredEvent, ok := event.(*events.PipelineTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for PipelineTriggered")

		return nil
	}

	logger := w.logger.With(
		"pipeline_id", triggeredEvent.PipelineID,
		"event_id", triggeredEvent.ID,
	)
	logger.InfoContext(ctx, "Processing pipeline triggered event")

	key := strconv.FormatInt(triggeredEvent.PipelineID, 10)

	result, err := w.runner.Run(ctx, logger, triggeredEvent.PipelineID, triggeredEvent.RecordCount)
	if err != nil {
		logger.ErrorContext(ctx, "Pipeline run failed", "error", err)

		failedEvent := events.PipelineFailed{
			BaseEvent: events.NewBaseEvent(events.PipelineFailedEvent, triggeredEvent.PipelineID),
			Error:     err.Error(),
		}
		failedEvent.WorkerID = w.id

		publishErr := w.eventBus.Publish(ctx, key, failedEvent)
		if publishErr != nil {
			logger.ErrorContext(ctx, "Failed to publish pipeline failed event", "error", publishErr)
		}

		return err
	}

	finishedEvent := events.PipelineFinished{
		BaseEvent:        events.NewBaseEvent(events.PipelineFinishedEvent, triggeredEvent.PipelineID),
		OutputFile:       result.OutputFile,
		RecordsProcessed: result.RecordsProcessed,
		Duration:         result.Duration,
	}
	finishedEvent.WorkerID = w.id

	publishErr := w.eventBus.Publish(ctx, key, finishedEvent)
	if publishErr != nil {
		logger.ErrorContext(ctx, "Failed to publish pipeline finished event", "error", publishErr)

		return publishErr
	}

	return nil
}
