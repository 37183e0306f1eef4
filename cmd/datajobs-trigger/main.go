// Package main provides a CLI to trigger pipeline runs and watch their
// progress from the terminal.
package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "datajobs-trigger",
		Usage:                 "Trigger pipeline runs and watch their progress",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Create a pipeline run and publish its trigger event",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Pipeline name (auto-generated if not provided)",
						Value: "",
					},
					&cli.IntFlag{
						Name:    "records",
						Usage:   "Number of records to generate",
						Value:   1000,
						Sources: cli.EnvVars("RECORD_COUNT"),
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Poll run status until it reaches a terminal state",
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
						Value:   "kafka",
						Sources: cli.EnvVars("EVENT_BUS_TYPE"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return RunTrigger(ctx, command)
				},
			},
			{
				Name:    "status",
				Aliases: []string{"st"},
				Usage:   "Show the status of a pipeline run and its stages",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "pipeline-id",
						Aliases:  []string{"id"},
						Usage:    "Pipeline run to inspect",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL (postgres:// URL or SQLite path)",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return ShowStatus(ctx, command)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
