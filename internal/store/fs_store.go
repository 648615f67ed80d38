package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Results are stored in a directory structure: <baseDir>/runs/<runID>/
//
// Writes go through a temp file + rename, so concurrent callers never see a
// partially written result and no locks are needed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}

func (fs *FSStore) resultPath(runID string) string {
	return filepath.Join(runDir(fs.baseDir, runID), "result.yaml")
}

// SaveResult atomically saves the result of a run.
func (fs *FSStore) SaveResult(runID string, rec *Record) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := rec.validateStored(); err != nil {
		return err
	}

	if err := os.MkdirAll(runDir(fs.baseDir, runID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	path := fs.resultPath(runID)
	if err := writeYAML(path, rec); err != nil {
		return err
	}

	slog.Debug("Result saved", "runID", runID, "path", path)
	return nil
}

// LoadResult retrieves the result of a run.
func (fs *FSStore) LoadResult(runID string) (*Record, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.resultPath(runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat result file: %w", err)
	}

	rec, err := ReadResultFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Result loaded", "runID", runID, "path", path)
	return rec, nil
}

// ListResults returns metadata for all stored runs, newest first.
func (fs *FSStore) ListResults() ([]RecordInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []RecordInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat runs directory: %w", err)
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RecordInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		if _, err := os.Stat(fs.resultPath(runID)); os.IsNotExist(err) {
			continue // Run still in progress or trace only
		}

		rec, err := fs.LoadResult(runID)
		if err != nil {
			slog.Warn("Failed to load result for listing", "runID", runID, "error", err)
			continue
		}
		infos = append(infos, rec.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	slog.Debug("Listed results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes the run directory and all its contents.
func (fs *FSStore) DeleteResult(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := runDir(fs.baseDir, runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Result deleted", "runID", runID, "path", dir)
	return nil
}

// WriteResultFile writes rec as a YAML document, appending ".yaml" to path
// when it lacks that suffix. It returns the path written.
func WriteResultFile(path string, rec *Record) (string, error) {
	if !strings.HasSuffix(path, ".yaml") {
		path += ".yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create result directory: %w", err)
		}
	}
	if err := writeYAML(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

// ReadResultFile reads and validates a YAML result document.
func ReadResultFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize result %s: %w", path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid result %s: %w", path, err)
	}
	return &rec, nil
}

// MarshalResult renders rec as YAML.
func MarshalResult(rec *Record) ([]byte, error) {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	return data, nil
}

func writeYAML(path string, rec *Record) error {
	data, err := MarshalResult(rec)
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}
	return nil
}
