// Package protocol defines the contracts between the macro engine and its
// pluggable action implementations.
package protocol

import (
	"context"
	"log/slog"

	"github.com/workstack/macrod/pkg/models"
)

// Action executes one non-flow-control step against the given execution.
// The returned value becomes the step output recorded in the action result.
type Action interface {
	Execute(ctx context.Context, execution *models.Execution, logger *slog.Logger) (any, error)
}

// ActionFactory builds actions of one type from step configuration. The
// configuration has already been rendered against the execution context.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
}
