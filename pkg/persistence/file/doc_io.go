package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
)

// readJSON loads one JSON document into T.
func readJSON[T any](filePath string) (*T, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	doc := new(T)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}

	return doc, nil
}

// writeJSON persists a document atomically: write a temp file in the same
// directory, then rename over the target.
func writeJSON(filePath string, doc any) error {
	dir := path.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filePath, err)
	}

	tmp, err := os.CreateTemp(dir, ".doc-*.json")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), filePath)
}
