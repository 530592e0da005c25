// Package persistence provides the storage abstraction for macro
// definitions, webhook configurations and execution records.
package persistence

import (
	"context"

	"github.com/workstack/macrod/pkg/models"
)

// MacroRepository is a read-only view of macro definitions. Definition CRUD
// belongs to the surrounding system.
type MacroRepository interface {
	Macros(ctx context.Context) ([]*models.Macro, error)
	MacroByID(ctx context.Context, id string) (*models.Macro, error)
}

// WebhookConfigRepository looks up webhook target configurations by id.
type WebhookConfigRepository interface {
	WebhookConfigByID(ctx context.Context, id string) (*models.WebhookConfig, error)
}

// ExecutionFilter narrows execution listings.
type ExecutionFilter struct {
	Status models.ExecutionStatus
	Limit  int
}

// ExecutionRepository persists macro execution records.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByMacroID(ctx context.Context, macroID string, filter ExecutionFilter) ([]*models.Execution, error)
}

// Persistence aggregates the engine's repositories behind one provider.
type Persistence interface {
	MacroRepository
	WebhookConfigRepository
	ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
