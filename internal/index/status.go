package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State describes where an index run stands.
type State string

const (
	// StateIndexing means a run is in progress.
	StateIndexing State = "indexing"
	// StateReady means the last run completed.
	StateReady State = "ready"
	// StateError means the last run aborted.
	StateError State = "error"
)

// statusFileName is the run snapshot under the data directory.
const statusFileName = "status.json"

// StatusSnapshot is the persisted record of the most recent index run,
// readable by other processes while a run is underway.
type StatusSnapshot struct {
	State        State     `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	FilesIndexed int       `json:"files_indexed"`
	FilesSkipped int       `json:"files_skipped"`
	FilesRemoved int       `json:"files_removed"`
	Chunks       int       `json:"chunks"`
	ErrorCount   int       `json:"error_count"`
	Message      string    `json:"message,omitempty"`
}

// WriteStatus persists a snapshot atomically.
func WriteStatus(dataDir string, s StatusSnapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dataDir, statusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadStatus reads the last snapshot. A missing file returns nil.
func LoadStatus(dataDir string) (*StatusSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, statusFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s StatusSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
