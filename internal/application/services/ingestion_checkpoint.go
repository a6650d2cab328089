package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IngestionProgress is the resumable state of a bulk crawl. The indices point
// at the next (area, type) pair to process.
type IngestionProgress struct {
	Phase            int       `json:"phase"`
	CurrentAreaIndex int       `json:"currentAreaIndex"`
	CurrentTypeIndex int       `json:"currentTypeIndex"`
	TotalProcessed   int       `json:"totalProcessed"`
	TotalInserted    int       `json:"totalInserted"`
	TotalDuplicates  int       `json:"totalDuplicates"`
	TotalErrors      int       `json:"totalErrors"`
	StartedAt        time.Time `json:"startedAt"`
	LastUpdatedAt    time.Time `json:"lastUpdatedAt"`
	Completed        bool      `json:"completed"`
}

// IngestionError is one entry of the crawl error log
type IngestionError struct {
	Timestamp time.Time `json:"timestamp"`
	Area      string    `json:"area"`
	Type      string    `json:"type"`
	Error     string    `json:"error"`
}

// CheckpointStore persists IngestionProgress as a JSON file
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a store backed by path
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Path returns the checkpoint file location
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load reads the checkpoint. It returns nil without error when no file exists.
func (s *CheckpointStore) Load() (*IngestionProgress, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var p IngestionProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path, err)
	}
	return &p, nil
}

// Save replaces the checkpoint atomically
func (s *CheckpointStore) Save(p *IngestionProgress) error {
	return writeJSONAtomic(s.path, p)
}

// ErrorLog accumulates crawl errors and rewrites the whole file on each append
type ErrorLog struct {
	path    string
	entries []IngestionError
}

// OpenErrorLog loads the existing log at path so a resumed crawl keeps appending to it
func OpenErrorLog(path string, keepExisting bool) (*ErrorLog, error) {
	l := &ErrorLog{path: path, entries: []IngestionError{}}
	if !keepExisting {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read error log: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("failed to parse error log %s: %w", path, err)
	}
	return l, nil
}

// Append records one error and rewrites the file
func (l *ErrorLog) Append(entry IngestionError) error {
	l.entries = append(l.entries, entry)
	return writeJSONAtomic(l.path, l.entries)
}

// Entries returns the errors recorded so far
func (l *ErrorLog) Entries() []IngestionError {
	return l.entries
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
