// Package services declares the external collaborators the macro engine
// calls into. Implementations live in the surrounding work-tracking system;
// the engine consumes these interfaces only.
package services

import (
	"context"
	"time"
)

// WorkItem is the engine's view of a work item returned by mutations.
type WorkItem struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	State  string         `json:"state"`
	Fields map[string]any `json:"fields,omitempty"`
}

// WorkItemService mutates work items. The engine assumes these operations
// are not idempotent: failed create-type actions are never retried by the
// engine (a retry could create duplicates).
type WorkItemService interface {
	CreateItem(ctx context.Context, title string, fields map[string]any) (*WorkItem, error)
	UpdateItem(ctx context.Context, itemID string, fields map[string]any) (*WorkItem, error)
	TransitionItem(ctx context.Context, itemID, targetState string) (*WorkItem, error)
	AddComment(ctx context.Context, itemID, author, text string) error
	AddRelationship(ctx context.Context, itemID, relatedID, relationType string) error
}

// NotificationService delivers user-facing notifications.
type NotificationService interface {
	Send(ctx context.Context, target, message string) error
}

// CommandResult captures the outcome of an external command run.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// CommandRunner executes external commands with a bounded runtime.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string, timeout time.Duration) (*CommandResult, error)
}
