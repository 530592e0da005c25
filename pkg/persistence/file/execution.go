package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
)

// ExecutionRepository persists execution records as JSON files. Writes are
// serialized per repository; the atomic rename in writeJSON keeps readers
// from observing partial documents.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	return writeJSON(path.Join(er.root, "executions", execution.ID+".json"), execution)
}

func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	execution, err := readJSON[models.Execution](path.Join(er.root, "executions", id+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}

	return execution, err
}

func (er *ExecutionRepository) ExecutionsByMacroID(ctx context.Context, macroID string, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	dir := path.Join(er.root, "executions")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, file := range jsonFiles {
		execution, err := readJSON[models.Execution](path.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", file, err)
		}

		if execution.MacroID != macroID {
			continue
		}

		if filter.Status != "" && execution.Status != filter.Status {
			continue
		}

		executions = append(executions, execution)
	}

	// Newest first, pending records (no start time) last.
	sort.Slice(executions, func(i, j int) bool {
		a, b := executions[i].StartTime, executions[j].StartTime
		if a == nil || b == nil {
			return b == nil && a != nil
		}

		return a.After(*b)
	})

	if filter.Limit > 0 && len(executions) > filter.Limit {
		executions = executions[:filter.Limit]
	}

	return executions, nil
}
