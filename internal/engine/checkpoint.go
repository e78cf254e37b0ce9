package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"liquidityPilot/internal/model"
)

// checkpoint is the on-disk form of the position book.
type checkpoint struct {
	Positions []model.Position `json:"positions"`
	UpdatedAt string           `json:"updated_at"`
}

// checkpointStore persists the position book between runs. An empty path
// disables it.
type checkpointStore struct {
	path string
}

func (c checkpointStore) load() ([]model.Position, bool, error) {
	if c.path == "" {
		return nil, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat positions: %w", err)
	}
	if stat.IsDir() {
		return nil, false, fmt.Errorf("positions path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false, fmt.Errorf("read positions: %w", err)
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("parse positions: %w", err)
	}
	return cp.Positions, true, nil
}

func (c checkpointStore) save(positions []model.Position, at time.Time) error {
	if c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create positions dir: %w", err)
		}
	}

	data, err := json.Marshal(checkpoint{
		Positions: positions,
		UpdatedAt: at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write positions tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename positions: %w", err)
	}
	return nil
}
