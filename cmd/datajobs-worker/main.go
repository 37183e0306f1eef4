package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/kyletaylored/datadog-data-jobs/pkg/cmd"
	"github.com/kyletaylored/datadog-data-jobs/pkg/config"
	"github.com/kyletaylored/datadog-data-jobs/pkg/log"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracing"
)

func main() {
	command := &cli.Command{
		Name:                  "datajobs-worker",
		Usage:                 "Start workers to execute pipeline runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres:// URL or SQLite path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional worker.yaml configuration file",
				Value:   "",
				Sources: cli.EnvVars("WORKER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "input-dir",
				Usage:   "Directory for generated data files",
				Sources: cli.EnvVars("INPUT_DIR"),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory for exported results files",
				Sources: cli.EnvVars("OUTPUT_DIR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Emit OpenTelemetry spans for pipeline runs",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("datajobs-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing Data Jobs Worker")

			cfg := config.DefaultWorkerConfig()

			if path := command.String("config"); path != "" {
				var err error

				cfg, err = config.LoadWorkerConfig(path)
				if err != nil {
					return err
				}
			}

			// Flags override the file.
			if command.String("input-dir") != "" {
				cfg.InputDir = command.String("input-dir")
			}

			if command.String("output-dir") != "" {
				cfg.OutputDir = command.String("output-dir")
			}

			if command.Bool("tracing") {
				cfg.Tracing = true
			}

			var tracer trace.Tracer

			if cfg.Tracing {
				var err error

				tracer, err = tracing.NewTracer(ctx, "datajobs-worker")
				if err != nil {
					return err
				}
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "datajobs-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

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

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				logger,
				cfg,
				tracer,
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
