package board

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFileName is the name of a board snapshot inside a cache directory
func SnapshotFileName(boardID string) string {
	return boardID + ".analyses.json"
}

// SaveSnapshot writes a run result as indented JSON. The graph and groups
// are not stored; items, edges and analyses are enough to render the board
// again.
func SaveSnapshot(path string, res *Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a result written by SaveSnapshot. A missing file
// returns nil, nil.
func LoadSnapshot(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	return &res, nil
}
