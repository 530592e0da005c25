package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the externally visible state of a macro execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

var (
	// ErrInvalidTransition is returned on a disallowed status transition.
	ErrInvalidTransition = errors.New("invalid execution status transition")
)

// Execution is one run of a macro's action list in response to one trigger
// event. It exclusively owns ActionResults and Variables; TriggerContext is
// a read-only reference. The owning macro runner is the only mutator; once
// terminal the record is immutable.
type Execution struct {
	ID             string          `json:"id"`
	MacroID        string          `json:"macro_id"`
	TriggerContext *TriggerEvent   `json:"trigger_context"`
	Status         ExecutionStatus `json:"status"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	ActionResults  []ActionResult  `json:"action_results"`
	Variables      map[string]any  `json:"variables"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	// WaitingOnInput marks the user-prompt sub-state of RUNNING. The
	// externally visible status value does not change while waiting.
	WaitingOnInput bool `json:"waiting_on_input,omitempty"`

	// PromptStepID records which step is waiting for input, when any.
	PromptStepID string `json:"prompt_step_id,omitempty"`
}

// NewExecution creates a pending execution for the given macro and event.
// Macro parameters seed the execution-scoped variables.
func NewExecution(macro *Macro, event *TriggerEvent) *Execution {
	variables := make(map[string]any, len(macro.Parameters))
	for k, v := range macro.Parameters {
		variables[k] = v
	}

	return &Execution{
		ID:             "exec-" + uuid.New().String(),
		MacroID:        macro.ID,
		TriggerContext: event,
		Status:         ExecutionPending,
		ActionResults:  make([]ActionResult, 0),
		Variables:      variables,
	}
}

// Start transitions PENDING -> RUNNING and records the start time.
func (e *Execution) Start() error {
	if e.Status != ExecutionPending {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	e.Status = ExecutionRunning
	e.StartTime = &now

	return nil
}

// Complete transitions RUNNING -> COMPLETED and records the end time.
func (e *Execution) Complete() error {
	if e.Status != ExecutionRunning {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	e.Status = ExecutionCompleted
	e.EndTime = &now
	e.WaitingOnInput = false

	return nil
}

// Fail transitions RUNNING -> FAILED, recording the error message and end
// time. Subsequent steps are not executed.
func (e *Execution) Fail(message string) error {
	if e.Status != ExecutionRunning {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	e.Status = ExecutionFailed
	e.ErrorMessage = message
	e.EndTime = &now
	e.WaitingOnInput = false

	return nil
}

// Cancel transitions any non-terminal state -> CANCELLED.
func (e *Execution) Cancel() error {
	if e.Status.IsTerminal() {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	e.Status = ExecutionCancelled
	e.EndTime = &now
	e.WaitingOnInput = false

	return nil
}

// RecordResult appends a step result and merges its output into the
// execution variables under the step's result key.
func (e *Execution) RecordResult(step ActionStep, result ActionResult) {
	e.ActionResults = append(e.ActionResults, result)

	if step.ResultKey != "" && result.Success {
		e.Variables[step.ResultKey] = result.Output
	}
}

// Duration derives end minus start. The second return is false while the
// execution is non-terminal.
func (e *Execution) Duration() (time.Duration, bool) {
	if e.StartTime == nil || e.EndTime == nil {
		return 0, false
	}

	return e.EndTime.Sub(*e.StartTime), true
}
