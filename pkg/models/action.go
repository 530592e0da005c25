package models

import "time"

// ActionType identifies what kind of work an action step performs.
type ActionType string

const (
	// Work-item actions, delegated to the external work-item service.
	ActionCreateWorkItem     ActionType = "create_work_item"
	ActionUpdateWorkItem     ActionType = "update_work_item"
	ActionTransitionWorkItem ActionType = "transition_work_item"
	ActionAddComment         ActionType = "add_comment"
	ActionAddRelationship    ActionType = "add_relationship"

	// System actions with external side effects.
	ActionSendNotification ActionType = "send_notification"
	ActionCallWebhook      ActionType = "call_webhook"
	ActionSendWebhookJSON  ActionType = "send_webhook_json"
	ActionSendWebhookForm  ActionType = "send_webhook_form"
	ActionRunCommand       ActionType = "run_command"

	// Diagnostic action without external side effects.
	ActionLog ActionType = "log"

	// Flow-control constructs, interpreted by the macro runner.
	ActionCondition  ActionType = "condition"
	ActionLoop       ActionType = "loop"
	ActionDelay      ActionType = "delay"
	ActionUserPrompt ActionType = "user_prompt"
)

// IsFlowControl reports whether the action type is interpreted by the runner
// itself rather than executed through the action registry.
func (t ActionType) IsFlowControl() bool {
	switch t {
	case ActionCondition, ActionLoop, ActionDelay, ActionUserPrompt:
		return true
	default:
		return false
	}
}

// ActionStep is one unit of work within a macro's ordered action list.
type ActionStep struct {
	ID   string     `json:"id"   validate:"required"`
	Type ActionType `json:"type" validate:"required"`
	Name string     `json:"name"`

	// Configuration is the type-specific step configuration, rendered
	// against the execution context before the action runs.
	Configuration map[string]any `json:"configuration,omitempty"`

	// ResultKey, when set, stores the step output into the execution's
	// variables under this key.
	ResultKey string `json:"result_key,omitempty"`

	// BestEffort steps record their failure and let the execution proceed
	// instead of failing it.
	BestEffort bool `json:"best_effort,omitempty"`

	// Branches holds the sub-step lists of flow-control steps: "then" and
	// "else" for condition, "body" for loop.
	Branches map[string][]ActionStep `json:"branches,omitempty"`
}

// ActionResult is the recorded outcome of one executed step.
type ActionResult struct {
	StepID     string        `json:"step_id"`
	ActionType ActionType    `json:"action_type"`
	Success    bool          `json:"success"`
	Output     any           `json:"output,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
}
