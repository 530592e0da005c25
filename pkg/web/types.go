package web

// SubmitTriggerRequest is the payload for POST /triggers.
type SubmitTriggerRequest struct {
	Type    string         `json:"type"   validate:"required"`
	Source  string         `json:"source" validate:"required"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ResumeExecutionRequest is the payload for POST /executions/:id/resume.
// Input is merged into the execution's variables.
type ResumeExecutionRequest struct {
	Input map[string]any `json:"input"`
}
