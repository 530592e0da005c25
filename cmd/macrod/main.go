// Package main provides the macrod server: the macro automation engine and
// its HTTP API in one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	execcmd "github.com/workstack/macrod/internal/command"
	"github.com/workstack/macrod/internal/workitems"
	"github.com/workstack/macrod/pkg/cmd"
	"github.com/workstack/macrod/pkg/engine"
	"github.com/workstack/macrod/pkg/log"
	"github.com/workstack/macrod/pkg/otelhelper"
	"github.com/workstack/macrod/pkg/ratelimit"
)

const defaultPort = 9080

func main() {
	app := &cli.Command{
		Name:                  "macrod",
		Usage:                 "Run the macro automation engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "api-port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://path or redis://host:port)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus transport (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "workitems-url",
				Usage:   "Base URL of the work-tracking API",
				Sources: cli.EnvVars("WORKITEMS_URL"),
			},
			&cli.StringFlag{
				Name:    "workitems-token",
				Usage:   "Bearer token for the work-tracking API",
				Sources: cli.EnvVars("WORKITEMS_TOKEN"),
			},
			&cli.StringFlag{
				Name:     "plugins-path",
				Usage:    "Path to the directory containing action plugins",
				Value:    "",
				Required: false,
			},
			&cli.DurationFlag{
				Name:    "schedule-interval",
				Usage:   "How often macro schedules are evaluated",
				Value:   time.Minute,
				Sources: cli.EnvVars("SCHEDULE_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of execution workers",
				Value:   0,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces to an OTLP collector",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

	if err := app.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("macrod")

	logger.InfoContext(ctx, "Initializing macrod")

	var (
		tracer trace.Tracer
		err    error
	)

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "macrod")
		if err != nil {
			return err
		}
	} else {
		tracer = otelhelper.NewNoopTracer()
	}

	store, err := cmd.NewPersistence(command.String("database-url"))
	if err != nil {
		return err
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter()
	workItems := workitems.NewClient(command.String("workitems-url"), command.String("workitems-token"))

	reg, err := cmd.NewRegistry(logger, command.String("plugins-path"), cmd.RegistryDeps{
		WorkItems:      workItems,
		Notifier:       workItems,
		CommandRunner:  execcmd.NewRunner(),
		WebhookConfigs: store,
		RateLimiter:    limiter,
	})
	if err != nil {
		return err
	}

	eng := engine.NewEngine(store, reg, bus, limiter, logger, tracer, engine.Config{
		Workers:          command.Int("workers"),
		ScheduleInterval: command.Duration("schedule-interval"),
	})

	if err := eng.Start(ctx); err != nil {
		return err
	}

	api := NewAPI(logger, eng)

	go func() {
		if err := api.Start(command.Int("api-port")); err != nil {
			logger.ErrorContext(ctx, "API server stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.InfoContext(ctx, "Shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	return eng.Stop(ctx)
}
