// Package engine assembles the macro automation engine: persistence, action
// registry, event bus, dispatcher, scheduler and runner, behind one facade.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	"github.com/workstack/macrod/pkg/dispatcher"
	"github.com/workstack/macrod/pkg/eventbus"
	"github.com/workstack/macrod/pkg/events"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/ratelimit"
	"github.com/workstack/macrod/pkg/registry"
	"github.com/workstack/macrod/pkg/runner"
	"github.com/workstack/macrod/pkg/scheduler"
	"github.com/workstack/macrod/pkg/services"
)

// Config tunes the engine's moving parts.
type Config struct {
	Workers          int
	MacroQueueSize   int
	ScheduleInterval time.Duration
}

// Engine is the macro automation engine facade. Trigger events enter via
// SubmitTrigger or the event bus; the dispatcher fans them out to macros and
// the runner executes them.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	bus         eventbus.EventBus
	limiter     *ratelimit.Limiter
	runner      *runner.Runner
	dispatcher  *dispatcher.Dispatcher
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
	validate    *validator.Validate

	cancel context.CancelFunc
}

func NewEngine(
	store persistence.Persistence,
	reg *registry.Registry,
	bus eventbus.EventBus,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	tracer trace.Tracer,
	config Config,
) *Engine {
	engineLogger := logger.With("module", "engine")
	validate := validator.New()

	macros := &validatedMacros{
		inner:    store,
		registry: reg,
		validate: validate,
		logger:   engineLogger,
	}

	run := runner.NewRunner(reg, store, bus, logger, tracer)

	disp := dispatcher.NewDispatcher(macros, run, logger, dispatcher.Config{
		Workers:        config.Workers,
		MacroQueueSize: config.MacroQueueSize,
	})

	sched := scheduler.NewScheduler(macros, store, bus, logger, config.ScheduleInterval)

	return &Engine{
		persistence: store,
		registry:    reg,
		bus:         bus,
		limiter:     limiter,
		runner:      run,
		dispatcher:  disp,
		scheduler:   sched,
		logger:      engineLogger,
		validate:    validate,
	}
}

// Start wires the event bus to the dispatcher and launches the worker pool
// and the scheduler loop. It returns once everything is running.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if err := e.bus.Handle(events.MacroTriggeredEvent, e.onMacroTriggered); err != nil {
		return fmt.Errorf("failed to register trigger handler: %w", err)
	}

	if err := e.bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	e.dispatcher.Start(ctx)

	go func() {
		_ = e.scheduler.Start(ctx)
	}()

	e.logger.InfoContext(ctx, "Engine started")

	return nil
}

// Stop shuts the engine down: the scheduler and workers exit, running
// executions are cancelled at their next checkpoint and the bus is closed.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	e.dispatcher.Wait()

	if err := e.bus.Close(); err != nil {
		e.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	e.logger.InfoContext(ctx, "Engine stopped")

	return e.persistence.Close(ctx)
}

func (e *Engine) onMacroTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.MacroTriggered)
	if !ok || triggered.Trigger == nil {
		return fmt.Errorf("unexpected macro trigger payload %T", event)
	}

	_, err := e.dispatcher.Dispatch(ctx, triggered.Trigger)
	if services.IsValidationError(err) || services.IsMacroBusy(err) {
		// Definition and concurrency rejections are terminal; a redelivery
		// cannot succeed.
		e.logger.WarnContext(ctx, "Trigger rejected", "event_id", triggered.Trigger.ID, "error", err)

		return nil
	}

	return err
}

// SubmitTrigger dispatches a trigger event synchronously and reports which
// macros it reached. Non-reentrant-strict conflicts surface as
// services.ErrMacroBusy.
func (e *Engine) SubmitTrigger(ctx context.Context, event *models.TriggerEvent) (*dispatcher.Result, error) {
	return e.dispatcher.Dispatch(ctx, event)
}

// Execution returns one execution record by id.
func (e *Engine) Execution(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := e.persistence.ExecutionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, services.ErrExecutionNotFound
	}

	return execution, nil
}

// Executions lists a macro's execution records, newest first.
func (e *Engine) Executions(ctx context.Context, macroID string, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	return e.persistence.ExecutionsByMacroID(ctx, macroID, filter)
}

// CancelExecution requests cancellation of a running execution.
func (e *Engine) CancelExecution(_ context.Context, executionID string) error {
	return e.runner.Cancel(executionID)
}

// ResumeExecution supplies input to an execution waiting on a user prompt.
func (e *Engine) ResumeExecution(_ context.Context, executionID string, input map[string]any) error {
	return e.runner.Resume(executionID, input)
}

// HealthCheck reports on the engine's persistence backend.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.persistence.HealthCheck(ctx)
}

// validatedMacros filters the macro repository down to valid definitions:
// invalid macros are excluded from matching and scheduling rather than
// failing the whole engine.
type validatedMacros struct {
	inner    persistence.MacroRepository
	registry *registry.Registry
	validate *validator.Validate
	logger   *slog.Logger
}

func (v *validatedMacros) Macros(ctx context.Context) ([]*models.Macro, error) {
	all, err := v.inner.Macros(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]*models.Macro, 0, len(all))

	for _, macro := range all {
		if err := v.registry.ValidateMacro(v.validate, macro); err != nil {
			v.logger.WarnContext(ctx, "Excluding invalid macro", "macro_id", macro.ID, "error", err)

			continue
		}

		valid = append(valid, macro)
	}

	return valid, nil
}

func (v *validatedMacros) MacroByID(ctx context.Context, id string) (*models.Macro, error) {
	macro, err := v.inner.MacroByID(ctx, id)
	if err != nil || macro == nil {
		return macro, err
	}

	if err := v.registry.ValidateMacro(v.validate, macro); err != nil {
		return nil, err
	}

	return macro, nil
}
