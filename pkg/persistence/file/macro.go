package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/workstack/macrod/pkg/models"
)

// MacroRepository reads macro definitions from JSON files. Definitions are
// managed by the surrounding system; this repository never writes.
type MacroRepository struct {
	root string
}

func NewMacroRepository(root string) *MacroRepository {
	return &MacroRepository{root: root}
}

func (mr *MacroRepository) Macros(_ context.Context) ([]*models.Macro, error) {
	dir := path.Join(mr.root, "macros")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list macro files: %w", err)
	}

	macros := make([]*models.Macro, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		macro, err := readJSON[models.Macro](path.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to load macro %s: %w", file, err)
		}

		macros = append(macros, macro)
	}

	return macros, nil
}

func (mr *MacroRepository) MacroByID(_ context.Context, id string) (*models.Macro, error) {
	macro, err := readJSON[models.Macro](path.Join(mr.root, "macros", id+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}

	return macro, err
}
