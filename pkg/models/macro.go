// Package models defines the core domain models for the macro automation engine.
package models

import "time"

// TriggerFilter decides which trigger events qualify to run a macro.
// Empty slices match everything of that dimension.
type TriggerFilter struct {
	EventTypes []TriggerEventType `json:"event_types,omitempty"`
	Sources    []string           `json:"sources,omitempty"`

	// Condition, when present, is evaluated against the event payload and
	// must hold for the event to match.
	Condition *Condition `json:"condition,omitempty"`
}

// Matches reports whether the event qualifies under this filter. Manual and
// scheduled events carrying an explicit macro id bypass the filter for that
// macro; that shortcut is applied by the dispatcher, not here.
func (f *TriggerFilter) Matches(event *TriggerEvent) bool {
	if len(f.EventTypes) > 0 {
		found := false

		for _, t := range f.EventTypes {
			if t == event.Type {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if len(f.Sources) > 0 {
		found := false

		for _, s := range f.Sources {
			if s == event.Source {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if f.Condition != nil {
		ok, err := EvaluateCondition(f.Condition, event.Payload)
		if err != nil || !ok {
			return false
		}
	}

	return true
}

// Macro is a named, reusable automation: a trigger filter, an optional
// schedule and an ordered action list. Definitions are immutable once an
// execution has started against them; the engine consumes them read-only.
type Macro struct {
	ID          string `json:"id"   validate:"required"`
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Enabled     bool   `json:"enabled"`

	Trigger  TriggerFilter  `json:"trigger"`
	Schedule *MacroSchedule `json:"schedule,omitempty"`
	Steps    []ActionStep   `json:"steps" validate:"required,min=1,dive"`

	// NonReentrantStrict rejects a new trigger with a busy result while an
	// execution is running, instead of queueing it.
	NonReentrantStrict bool `json:"non_reentrant_strict,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
