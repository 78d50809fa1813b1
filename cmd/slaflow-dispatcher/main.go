package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/fieldline/slaflow/pkg/cmd"
	"github.com/fieldline/slaflow/pkg/eventbus"
	"github.com/fieldline/slaflow/pkg/log"
	"github.com/fieldline/slaflow/pkg/otelhelper"
	"github.com/fieldline/slaflow/pkg/queue"
	"github.com/fieldline/slaflow/pkg/workflow"
)

const serviceName = "slaflow-dispatcher"

func main() {
	root := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Consume SLA events and run workflow automations against them",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dispatcher-id",
				Aliases: []string{"id"},
				Usage:   "Custom dispatcher ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("DISPATCHER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Workflow store URL (memory:// or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address of the dispatch queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-stream",
				Usage:   "Redis stream the dispatch queue reads from",
				Value:   "slaflow:events",
				Sources: cli.EnvVars("QUEUE_STREAM"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Lifecycle event bus provider (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "cleanup-interval",
				Usage:   "How often to sweep old terminal executions (0 disables)",
				Value:   time.Hour,
				Sources: cli.EnvVars("CLEANUP_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long terminal executions are kept",
				Value:   30 * 24 * time.Hour,
				Sources: cli.EnvVars("EXECUTION_RETENTION"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("Dispatcher exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	if _, err := otelhelper.NewTracer(ctx, serviceName); err != nil {
		slog.Warn("Tracing disabled", "error", err)
	}

	dispatcherID := command.String("dispatcher-id")
	if dispatcherID == "" {
		dispatcherID = fmt.Sprintf("dispatcher-%s", uuid.New().String()[:8])
	}

	logger := log.WithModule(serviceName).With("dispatcher_id", dispatcherID)
	logger.Info("Initializing dispatcher")

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to create workflow store: %w", err)
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.Error("Failed to close workflow store", "error", err)
		}
	}()

	var publisher eventbus.EventPublisher

	if provider := command.String("event-bus"); provider != "none" {
		bus, err := cmd.NewEventBus(provider, serviceName, logger)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}

		defer func() {
			if err := bus.Close(); err != nil {
				logger.Error("Failed to close event bus", "error", err)
			}
		}()

		publisher = bus
	}

	dispatchQueue, err := queue.New(ctx, queue.Options{
		Addr:         command.String("redis-url"),
		Stream:       command.String("queue-stream"),
		ConsumerName: dispatcherID,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to dispatch queue: %w", err)
	}

	defer func() {
		if err := dispatchQueue.Close(); err != nil {
			logger.Error("Failed to close dispatch queue", "error", err)
		}
	}()

	engine := workflow.NewEngine(store, newLogCollaborators(logger), publisher, logger)

	NewDaemon(
		dispatcherID,
		engine,
		store,
		dispatchQueue,
		logger,
		command.Duration("cleanup-interval"),
		command.Duration("retention"),
	).Start(ctx)

	return nil
}
