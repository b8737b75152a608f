package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"remnantsync/internal/model"
)

// WriteReport stores the run report as one JSON document, replacing the
// previous run's file.
func WriteReport(path string, rep model.Report) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadReport(path string) (model.Report, error) {
	var rep model.Report
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return rep, fmt.Errorf("invalid report %s: %w", path, err)
	}
	return rep, nil
}
