package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingExecution() *Execution {
	macro := &Macro{
		ID:         "macro-1",
		Name:       "test macro",
		Parameters: map[string]any{"who": "world"},
		Steps:      []ActionStep{{ID: "s1", Type: ActionSendNotification}},
	}

	return NewExecution(macro, NewTriggerEvent(TriggerManual, "test", nil))
}

func TestNewExecutionSeedsVariablesFromParameters(t *testing.T) {
	t.Parallel()

	execution := newPendingExecution()

	assert.Equal(t, ExecutionPending, execution.Status)
	assert.Equal(t, "macro-1", execution.MacroID)
	assert.Equal(t, "world", execution.Variables["who"])
	assert.NotEmpty(t, execution.ID)

	// The variables map is a copy, not an alias of the macro parameters.
	execution.Variables["who"] = "changed"

	other := newPendingExecution()
	assert.Equal(t, "world", other.Variables["who"])
}

func TestExecutionLifecycleTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		steps    func(e *Execution) error
		status   ExecutionStatus
		terminal bool
	}{
		{
			name: "start then complete",
			steps: func(e *Execution) error {
				if err := e.Start(); err != nil {
					return err
				}

				return e.Complete()
			},
			status:   ExecutionCompleted,
			terminal: true,
		},
		{
			name: "start then fail",
			steps: func(e *Execution) error {
				if err := e.Start(); err != nil {
					return err
				}

				return e.Fail("boom")
			},
			status:   ExecutionFailed,
			terminal: true,
		},
		{
			name:     "cancel while pending",
			steps:    func(e *Execution) error { return e.Cancel() },
			status:   ExecutionCancelled,
			terminal: true,
		},
		{
			name: "cancel while running",
			steps: func(e *Execution) error {
				if err := e.Start(); err != nil {
					return err
				}

				return e.Cancel()
			},
			status:   ExecutionCancelled,
			terminal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			execution := newPendingExecution()
			require.NoError(t, tt.steps(execution))

			assert.Equal(t, tt.status, execution.Status)
			assert.Equal(t, tt.terminal, execution.Status.IsTerminal())
		})
	}
}

func TestExecutionInvalidTransitions(t *testing.T) {
	t.Parallel()

	t.Run("complete before start", func(t *testing.T) {
		t.Parallel()

		execution := newPendingExecution()
		assert.ErrorIs(t, execution.Complete(), ErrInvalidTransition)
	})

	t.Run("fail before start", func(t *testing.T) {
		t.Parallel()

		execution := newPendingExecution()
		assert.ErrorIs(t, execution.Fail("boom"), ErrInvalidTransition)
	})

	t.Run("double start", func(t *testing.T) {
		t.Parallel()

		execution := newPendingExecution()
		require.NoError(t, execution.Start())
		assert.ErrorIs(t, execution.Start(), ErrInvalidTransition)
	})

	t.Run("terminal records admit nothing", func(t *testing.T) {
		t.Parallel()

		execution := newPendingExecution()
		require.NoError(t, execution.Start())
		require.NoError(t, execution.Complete())

		assert.ErrorIs(t, execution.Fail("late"), ErrInvalidTransition)
		assert.ErrorIs(t, execution.Cancel(), ErrInvalidTransition)
		assert.ErrorIs(t, execution.Start(), ErrInvalidTransition)
	})
}

func TestExecutionTerminalClearsWaitingFlag(t *testing.T) {
	t.Parallel()

	execution := newPendingExecution()
	require.NoError(t, execution.Start())

	execution.WaitingOnInput = true
	require.NoError(t, execution.Cancel())

	assert.False(t, execution.WaitingOnInput)
}

func TestExecutionRecordResult(t *testing.T) {
	t.Parallel()

	execution := newPendingExecution()

	step := ActionStep{ID: "s1", Type: ActionSendNotification, ResultKey: "notified"}
	execution.RecordResult(step, ActionResult{StepID: "s1", Success: true, Output: map[string]any{"sent": true}})

	require.Len(t, execution.ActionResults, 1)
	assert.Equal(t, map[string]any{"sent": true}, execution.Variables["notified"])

	// Failed results never populate the result key.
	failed := ActionStep{ID: "s2", Type: ActionSendNotification, ResultKey: "second"}
	execution.RecordResult(failed, ActionResult{StepID: "s2", Success: false, Error: "boom"})

	require.Len(t, execution.ActionResults, 2)
	assert.NotContains(t, execution.Variables, "second")
}

func TestExecutionDuration(t *testing.T) {
	t.Parallel()

	execution := newPendingExecution()

	_, ok := execution.Duration()
	assert.False(t, ok, "pending executions have no duration")

	require.NoError(t, execution.Start())

	_, ok = execution.Duration()
	assert.False(t, ok, "running executions have no duration")

	require.NoError(t, execution.Complete())

	duration, ok := execution.Duration()
	require.True(t, ok)
	assert.GreaterOrEqual(t, duration, time.Duration(0))
}
