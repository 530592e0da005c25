package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/workstack/macrod/pkg/events"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/services"
	"github.com/workstack/macrod/pkg/template"
)

// Branch names used by flow-control steps.
const (
	branchThen = "then"
	branchElse = "else"
	branchBody = "body"
)

func (r *Runner) runFlowControl(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	switch step.Type {
	case models.ActionCondition:
		return r.runCondition(ctx, state, step, logger)
	case models.ActionLoop:
		return r.runLoop(ctx, state, step, logger)
	case models.ActionDelay:
		return r.runDelay(ctx, state, step, logger)
	case models.ActionUserPrompt:
		return r.runUserPrompt(ctx, state, step, logger)
	default:
		return &stepFailure{stepID: step.ID, message: fmt.Sprintf("unknown flow control type %q", step.Type)}
	}
}

// runCondition evaluates the step's predicate over the execution variables
// and executes the selected branch atomically relative to its own step list.
func (r *Runner) runCondition(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	matched, err := r.evaluatePredicate(step, state.execution)
	if err != nil {
		return &stepFailure{stepID: step.ID, message: err.Error()}
	}

	branch := branchThen
	if !matched {
		branch = branchElse
	}

	logger.InfoContext(ctx, "Condition evaluated", "matched", matched)

	return r.runSteps(ctx, state, step.Branches[branch], logger)
}

// runLoop repeats the body branch a fixed count or while a condition holds,
// iteration by iteration, bounded by the engine's iteration cap.
func (r *Runner) runLoop(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	execution := state.execution
	body := step.Branches[branchBody]

	count := -1
	if raw, ok := step.Configuration["count"].(float64); ok && raw >= 0 {
		count = int(raw)
	}

	for iteration := 0; ; iteration++ {
		if iteration >= maxLoopIterations {
			return &stepFailure{
				stepID:  step.ID,
				message: fmt.Sprintf("loop exceeded maximum of %d iterations", maxLoopIterations),
			}
		}

		if count >= 0 && iteration >= count {
			return nil
		}

		if count < 0 {
			proceed, err := r.evaluatePredicate(step, execution)
			if err != nil {
				return &stepFailure{stepID: step.ID, message: err.Error()}
			}

			if !proceed {
				return nil
			}
		}

		execution.Variables["loop_index"] = iteration

		if err := r.runSteps(ctx, state, body, logger); err != nil {
			return err
		}
	}
}

// runDelay suspends this execution for the configured duration without
// blocking other executions; cancellation interrupts the wait.
func (r *Runner) runDelay(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	seconds, _ := step.Configuration["duration_seconds"].(float64)
	if seconds <= 0 {
		return nil
	}

	duration := time.Duration(seconds * float64(time.Second))
	logger.InfoContext(ctx, "Delaying execution", "duration", duration)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	// The wait must not occupy a processing slot.
	r.yieldSlot(state)

	select {
	case <-state.cancelCh:
		return services.ErrCancelled
	case <-ctx.Done():
		return services.ErrCancelled
	case <-timer.C:
	}

	return r.acquireSlot(ctx, state)
}

// runUserPrompt parks the execution in the waiting-on-input sub-state until
// an external actor supplies a value or the execution is cancelled. The
// externally visible status stays RUNNING while waiting.
func (r *Runner) runUserPrompt(ctx context.Context, state *activeExecution, step models.ActionStep, logger *slog.Logger) error {
	execution := state.execution
	prompt, _ := step.Configuration["prompt"].(string)

	r.mu.Lock()
	state.waiting = true
	r.mu.Unlock()

	execution.WaitingOnInput = true
	execution.PromptStepID = step.ID
	r.save(ctx, execution, logger)

	r.publish(ctx, execution.MacroID, events.ExecutionPaused{
		BaseEvent:    events.NewBaseEvent(events.ExecutionPausedEvent, execution.MacroID),
		ExecutionID:  execution.ID,
		PromptStepID: step.ID,
		Prompt:       prompt,
	})

	logger.InfoContext(ctx, "Execution waiting on input", "prompt", prompt)

	// Parked executions give their processing slot back.
	r.yieldSlot(state)

	var input map[string]any

	select {
	case <-state.cancelCh:
		return services.ErrCancelled
	case <-ctx.Done():
		return services.ErrCancelled
	case input = <-state.resumeCh:
	}

	r.mu.Lock()
	state.waiting = false
	r.mu.Unlock()

	if err := r.acquireSlot(ctx, state); err != nil {
		return err
	}

	execution.WaitingOnInput = false
	execution.PromptStepID = ""

	started := time.Now().UTC()

	for k, v := range input {
		execution.Variables[k] = v
	}

	execution.RecordResult(step, models.ActionResult{
		StepID:     step.ID,
		ActionType: step.Type,
		Success:    true,
		Output:     input,
		Duration:   time.Since(started),
		StartedAt:  started,
	})

	r.publish(ctx, execution.MacroID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.MacroID),
		ExecutionID: execution.ID,
	})

	logger.InfoContext(ctx, "Execution resumed")

	return nil
}

// evaluatePredicate resolves a step predicate: a structured "condition"
// object evaluated over the execution variables, or a template "expression"
// coerced to a boolean. An absent predicate holds.
func (r *Runner) evaluatePredicate(step models.ActionStep, execution *models.Execution) (bool, error) {
	if raw, ok := step.Configuration["condition"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return false, fmt.Errorf("invalid condition: %w", err)
		}

		var condition models.Condition
		if err := json.Unmarshal(encoded, &condition); err != nil {
			return false, fmt.Errorf("invalid condition: %w", err)
		}

		return models.EvaluateCondition(&condition, execution.Variables)
	}

	if expression, ok := step.Configuration["expression"].(string); ok {
		rendered, err := template.RenderWithExecution(expression, execution)
		if err != nil {
			return false, err
		}

		return models.EvaluateBool(rendered)
	}

	return true, nil
}
