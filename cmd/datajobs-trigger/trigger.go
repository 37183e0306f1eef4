package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/kyletaylored/datadog-data-jobs/pkg/cmd"
	"github.com/kyletaylored/datadog-data-jobs/pkg/events"
	"github.com/kyletaylored/datadog-data-jobs/pkg/log"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

const watchInterval = 5 * time.Second

// RunTrigger creates a pipeline run, publishes its trigger event and
// optionally watches it to completion.
func RunTrigger(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("datajobs-trigger")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "datajobs-trigger", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	name := command.String("name")
	if name == "" {
		name = "Pipeline Run " + time.Now().Format("2006-01-02 15:04:05")
	}

	pipelineTracker := tracker.New(persistence, logger)

	pipeline, err := pipelineTracker.CreatePipeline(ctx, name, "Triggered from the command line")
	if err != nil {
		return err
	}

	recordCount := command.Int("records")

	event := events.PipelineTriggered{
		BaseEvent:   events.NewBaseEvent(events.PipelineTriggeredEvent, pipeline.ID),
		RecordCount: recordCount,
	}

	err = eventBus.Publish(ctx, strconv.FormatInt(pipeline.ID, 10), event)
	if err != nil {
		return fmt.Errorf("failed to publish trigger event: %w", err)
	}

	logger.InfoContext(ctx, "Pipeline triggered",
		"pipeline_id", pipeline.ID,
		"record_count", recordCount,
	)

	if !command.Bool("watch") {
		return nil
	}

	return watchPipeline(ctx, pipelineTracker, pipeline.ID)
}

// ShowStatus prints the run and its stage rows.
func ShowStatus(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("datajobs-trigger")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	pipelineTracker := tracker.New(persistence, logger)

	return printStatus(ctx, pipelineTracker, command.Int64("pipeline-id"))
}

func watchPipeline(ctx context.Context, t *tracker.Tracker, pipelineID int64) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		pipeline, err := t.GetPipeline(ctx, pipelineID)
		if err != nil {
			return err
		}

		err = printStatus(ctx, t, pipelineID)
		if err != nil {
			return err
		}

		if pipeline.Status.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStatus(ctx context.Context, t *tracker.Tracker, pipelineID int64) error {
	pipeline, err := t.GetPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline %d (%s): %s\n", pipeline.ID, pipeline.Name, pipeline.Status)

	if pipeline.ErrorMessage != nil {
		fmt.Printf("  error: %s\n", *pipeline.ErrorMessage)
	}

	stages, err := t.GetStages(ctx, pipelineID)
	if err != nil {
		return err
	}

	for _, stage := range stages {
		line := fmt.Sprintf("  %-20s %s", stage.StageName, stage.Status)
		if stage.ExecutionTimeSeconds != nil {
			line += fmt.Sprintf(" (%.2fs)", *stage.ExecutionTimeSeconds)
		}

		fmt.Println(line)
	}

	return nil
}
