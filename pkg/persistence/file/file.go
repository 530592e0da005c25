// Package file provides file-based persistence for macro definitions,
// webhook configurations and execution records.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system. Each
// record is one JSON document under a per-collection subdirectory.
type Persistence struct {
	root          string
	macroRepo     *MacroRepository
	webhookRepo   *WebhookConfigRepository
	executionRepo *ExecutionRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		macroRepo:     NewMacroRepository(cleanRoot),
		webhookRepo:   NewWebhookConfigRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Macros(ctx context.Context) ([]*models.Macro, error) {
	return fp.macroRepo.Macros(ctx)
}

func (fp *Persistence) MacroByID(ctx context.Context, id string) (*models.Macro, error) {
	return fp.macroRepo.MacroByID(ctx, id)
}

func (fp *Persistence) WebhookConfigByID(ctx context.Context, id string) (*models.WebhookConfig, error) {
	return fp.webhookRepo.WebhookConfigByID(ctx, id)
}

func (fp *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	return fp.executionRepo.SaveExecution(ctx, execution)
}

func (fp *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return fp.executionRepo.ExecutionByID(ctx, id)
}

func (fp *Persistence) ExecutionsByMacroID(ctx context.Context, macroID string, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	return fp.executionRepo.ExecutionsByMacroID(ctx, macroID, filter)
}
