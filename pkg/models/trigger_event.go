package models

import (
	"time"

	"github.com/google/uuid"
)

// TriggerEventType classifies what caused a trigger event.
type TriggerEventType string

const (
	TriggerManual    TriggerEventType = "manual"
	TriggerScheduled TriggerEventType = "scheduled"

	TriggerItemCreated      TriggerEventType = "work_item_created"
	TriggerItemUpdated      TriggerEventType = "work_item_updated"
	TriggerItemTransitioned TriggerEventType = "work_item_transitioned"
	TriggerItemCommented    TriggerEventType = "work_item_commented"
)

// Well-known payload keys.
const (
	PayloadKeyMacroID = "macro_id"
	PayloadKeyItemID  = "item_id"
	PayloadKeyUser    = "user"
)

// TriggerEvent is an occurrence that may cause macro executions. Events are
// read-only once created; the same event may fan out to several macros.
type TriggerEvent struct {
	ID        string           `json:"id"`
	Type      TriggerEventType `json:"type"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   map[string]any   `json:"payload,omitempty"`
}

func NewTriggerEvent(eventType TriggerEventType, source string, payload map[string]any) *TriggerEvent {
	if payload == nil {
		payload = make(map[string]any)
	}

	return &TriggerEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// MacroID returns the explicitly targeted macro id, when the payload names
// one. Manual and scheduled events use this to bypass filter matching.
func (e *TriggerEvent) MacroID() string {
	id, _ := e.Payload[PayloadKeyMacroID].(string)

	return id
}

// ItemID returns the work item the event concerns, when the payload names
// one.
func (e *TriggerEvent) ItemID() string {
	id, _ := e.Payload[PayloadKeyItemID].(string)

	return id
}
