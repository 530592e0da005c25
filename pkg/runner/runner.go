// Package runner orchestrates macro executions: it threads the trigger
// payload and variable context through the ordered action list, records
// per-step results and finalizes the execution status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/workstack/macrod/pkg/eventbus"
	"github.com/workstack/macrod/pkg/events"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/otelhelper"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/registry"
	"github.com/workstack/macrod/pkg/services"
	"github.com/workstack/macrod/pkg/template"
)

// maxLoopIterations caps loop steps regardless of their configuration, to
// prevent runaway loops.
const maxLoopIterations = 1000

// errStepFailed is the internal signal that a step failed fatally. The
// failing step's message travels alongside.
type stepFailure struct {
	stepID  string
	message string
}

func (f *stepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %s", f.stepID, f.message)
}

// activeExecution tracks one in-flight execution so it can be cancelled or
// resumed from outside the runner goroutine. waiting is guarded by the
// runner's lock; slotHeld is touched only by the executing goroutine.
type activeExecution struct {
	execution *models.Execution

	cancelOnce sync.Once
	cancelCh   chan struct{}
	resumeCh   chan map[string]any

	waiting  bool
	slotHeld bool
}

func (a *activeExecution) cancel() {
	a.cancelOnce.Do(func() {
		close(a.cancelCh)
	})
}

// Runner executes macros. Multiple executions may run concurrently, one per
// Execute call; the runner itself holds only the shared registry of
// in-flight executions.
type Runner struct {
	registry   *registry.Registry
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	tracer     trace.Tracer

	slots chan struct{}

	mu     sync.Mutex
	active map[string]*activeExecution
}

func NewRunner(
	reg *registry.Registry,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Runner {
	return &Runner{
		registry:   reg,
		executions: executions,
		publisher:  publisher,
		logger:     logger.With("module", "macro_runner"),
		tracer:     tracer,
		active:     make(map[string]*activeExecution),
	}
}

// WithActiveLimit bounds how many executions process action steps at once.
// Suspended executions (delay, user prompt) release their slot while they
// wait, so they never starve other executions. n <= 0 leaves processing
// unbounded.
func (r *Runner) WithActiveLimit(n int) *Runner {
	if n > 0 {
		r.slots = make(chan struct{}, n)
	}

	return r
}

// acquireSlot blocks until a processing slot is free, the execution is
// cancelled or the context ends. Reacquisition after a suspension goes
// through here as well.
func (r *Runner) acquireSlot(ctx context.Context, state *activeExecution) error {
	if r.slots == nil || state.slotHeld {
		return nil
	}

	select {
	case r.slots <- struct{}{}:
		state.slotHeld = true

		return nil
	case <-state.cancelCh:
		return services.ErrCancelled
	case <-ctx.Done():
		return services.ErrCancelled
	}
}

// yieldSlot gives the processing slot back, if one is held.
func (r *Runner) yieldSlot(state *activeExecution) {
	if r.slots == nil || !state.slotHeld {
		return
	}

	<-r.slots
	state.slotHeld = false
}

// Execute runs the macro's action list for one trigger event and returns
// the finalized execution record. It blocks until the execution reaches a
// terminal status (suspension points park the calling goroutine without
// holding any shared lock).
func (r *Runner) Execute(ctx context.Context, macro *models.Macro, event *models.TriggerEvent) (*models.Execution, error) {
	execution := models.NewExecution(macro, event)

	state := &activeExecution{
		execution: execution,
		cancelCh:  make(chan struct{}),
		resumeCh:  make(chan map[string]any, 1),
	}

	r.mu.Lock()
	r.active[execution.ID] = state
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.active, execution.ID)
		r.mu.Unlock()
	}()

	logger := r.logger.With("macro_id", macro.ID, "execution_id", execution.ID)

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "macro.execute",
		attribute.String(otelhelper.MacroIDKey, macro.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
	)
	defer span.End()

	if err := execution.Start(); err != nil {
		return execution, err
	}

	r.save(ctx, execution, logger)
	r.publish(ctx, macro.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, macro.ID),
		ExecutionID: execution.ID,
		TriggerType: event.Type,
	})

	logger.InfoContext(ctx, "Execution started", "steps", len(macro.Steps))

	err := r.acquireSlot(ctx, state)
	if err == nil {
		err = r.runSteps(ctx, state, macro.Steps, logger)
	}

	r.yieldSlot(state)

	switch {
	case err == nil:
		_ = execution.Complete()

		duration, _ := execution.Duration()
		r.publish(ctx, macro.ID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, macro.ID),
			ExecutionID:   execution.ID,
			DurationMs:    duration.Milliseconds(),
			StepsExecuted: len(execution.ActionResults),
		})
		logger.InfoContext(ctx, "Execution completed", "duration", duration)

	case errors.Is(err, services.ErrCancelled):
		_ = execution.Cancel()

		r.publish(ctx, macro.ID, events.ExecutionCancelled{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCancelledEvent, macro.ID),
			ExecutionID:   execution.ID,
			StepsExecuted: len(execution.ActionResults),
		})
		logger.InfoContext(ctx, "Execution cancelled")

	default:
		_ = execution.Fail(err.Error())

		duration, _ := execution.Duration()
		r.publish(ctx, macro.ID, events.ExecutionFailed{
			BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, macro.ID),
			ExecutionID:   execution.ID,
			Error:         err.Error(),
			DurationMs:    duration.Milliseconds(),
			StepsExecuted: len(execution.ActionResults),
		})
		logger.ErrorContext(ctx, "Execution failed", "error", err)
	}

	r.save(ctx, execution, logger)
	otelhelper.RecordStatus(span, err)

	return execution, nil
}

// Cancel requests cancellation of a running execution. The execution stops
// at its next cooperative checkpoint, before the next action step begins;
// an in-flight webhook call finishes or times out naturally.
func (r *Runner) Cancel(executionID string) error {
	r.mu.Lock()
	state, ok := r.active[executionID]
	r.mu.Unlock()

	if !ok {
		return services.ErrExecutionNotFound
	}

	state.cancel()

	return nil
}

// Resume supplies input to an execution waiting on a user prompt.
func (r *Runner) Resume(executionID string, input map[string]any) error {
	r.mu.Lock()
	state, ok := r.active[executionID]
	waiting := ok && state.waiting
	r.mu.Unlock()

	if !ok {
		return services.ErrExecutionNotFound
	}

	if !waiting {
		return services.ErrNotWaitingForInput
	}

	select {
	case state.resumeCh <- input:
		return nil
	default:
		return services.ErrNotWaitingForInput
	}
}

// runSteps executes a step list strictly in sequence. A cooperative
// cancellation checkpoint precedes every step.
func (r *Runner) runSteps(ctx context.Context, state *activeExecution, steps []models.ActionStep, logger *slog.Logger) error {
	for _, step := range steps {
		if err := r.checkpoint(ctx, state); err != nil {
			return err
		}

		if err := r.runStep(ctx, state, step, logger); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runStep(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	stepLogger := logger.With("step_id", step.ID, "action_type", string(step.Type))

	if step.Type.IsFlowControl() {
		return r.runFlowControl(ctx, state, step, stepLogger)
	}

	execution := state.execution

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "macro.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ActionTypeKey, string(step.Type)),
	)
	defer span.End()

	started := time.Now().UTC()

	output, err := r.executeAction(ctx, execution, step, stepLogger)

	result := models.ActionResult{
		StepID:     step.ID,
		ActionType: step.Type,
		Success:    err == nil,
		Output:     output,
		Duration:   time.Since(started),
		StartedAt:  started,
	}

	if err != nil {
		result.Error = err.Error()
	}

	execution.RecordResult(step, result)
	r.save(ctx, execution, stepLogger)
	otelhelper.RecordStatus(span, err)

	if err != nil {
		if step.BestEffort {
			stepLogger.WarnContext(ctx, "Best-effort step failed, continuing", "error", err)

			return nil
		}

		return &stepFailure{stepID: step.ID, message: err.Error()}
	}

	stepLogger.InfoContext(ctx, "Step completed", "duration", result.Duration)

	return nil
}

// executeAction renders the step configuration against the execution
// context and runs the registered action.
func (r *Runner) executeAction(ctx context.Context, execution *models.Execution, step models.ActionStep, logger *slog.Logger) (any, error) {
	rendered, err := template.RenderConfig(step.Configuration, execution)
	if err != nil {
		return nil, err
	}

	action, err := r.registry.CreateAction(string(step.Type), rendered)
	if err != nil {
		return nil, err
	}

	return action.Execute(ctx, execution, logger)
}

// checkpoint is the cooperative cancellation point between steps.
func (r *Runner) checkpoint(ctx context.Context, state *activeExecution) error {
	select {
	case <-state.cancelCh:
		return services.ErrCancelled
	case <-ctx.Done():
		return services.ErrCancelled
	default:
		return nil
	}
}

func (r *Runner) save(ctx context.Context, execution *models.Execution, logger *slog.Logger) {
	if r.executions == nil {
		return
	}

	if err := r.executions.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution", "error", err)
	}
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish execution event", "error", err)
	}
}
