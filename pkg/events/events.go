// Package events defines the event types flowing over the engine's bus:
// trigger events entering the dispatcher and execution lifecycle
// notifications leaving the runner.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/workstack/macrod/pkg/models"
)

type EventType string

// Topic carries all engine events.
const Topic = "macrod.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger ingestion.
	MacroTriggeredEvent EventType = "macro.triggered"

	// Execution lifecycle.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	MacroID   string         `json:"macro_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, macroID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		MacroID:   macroID,
		Metadata:  make(map[string]any),
	}
}

// MacroTriggered announces a trigger event to be dispatched. MacroID is
// empty for lifecycle events that match by filter rather than by id.
type MacroTriggered struct {
	BaseEvent

	Trigger *models.TriggerEvent `json:"trigger"`
}

func (e MacroTriggered) GetType() EventType { return MacroTriggeredEvent }

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string                  `json:"execution_id"`
	TriggerType models.TriggerEventType `json:"trigger_type"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	Error         string `json:"error"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	Reason        string `json:"reason,omitempty"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type ExecutionPaused struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	PromptStepID string `json:"prompt_step_id"`
	Prompt       string `json:"prompt,omitempty"`
}

func (e ExecutionPaused) GetType() EventType { return ExecutionPausedEvent }

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ResumedBy   string `json:"resumed_by,omitempty"`
}

func (e ExecutionResumed) GetType() EventType { return ExecutionResumedEvent }
