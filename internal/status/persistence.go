// Package status provides per-record-type sync status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the sync status of a record type
	SaveStatus(ctx context.Context, recordType string, status *SyncStatus) error

	// LoadStatus loads the sync status of a record type.
	// Returns an empty SyncStatus if none was saved yet (first run)
	LoadStatus(ctx context.Context, recordType string) (*SyncStatus, error)

	// LoadAllStatus loads the sync status of every record type
	LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// Each record type gets its own directory under basePath.
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

func (f *fileStatusPersistence) statusPath(recordType string) (string, error) {
	if recordType == "" || recordType == "." || recordType == ".." ||
		strings.ContainsAny(recordType, `/\`) {
		return "", fmt.Errorf("invalid record type name %q", recordType)
	}
	return filepath.Join(f.basePath, recordType, StatusFileName), nil
}

// SaveStatus writes the status to a temporary file and renames it into place
func (f *fileStatusPersistence) SaveStatus(_ context.Context, recordType string, status *SyncStatus) error {
	filePath, err := f.statusPath(recordType)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create status directory for record type '%s': %w", recordType, err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for record type '%s': %w", recordType, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for record type '%s': %w", recordType, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for record type '%s': %w", recordType, err)
	}

	return nil
}

// LoadStatus reads the status of a record type.
// Returns an empty SyncStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context, recordType string) (*SyncStatus, error) {
	filePath, err := f.statusPath(recordType)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- filePath is basePath plus a validated record type name
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for record type '%s': %w", recordType, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for record type '%s': %w", recordType, err)
	}

	return &status, nil
}

// LoadAllStatus loads the status of every record type found under the base path.
// Unreadable entries are skipped.
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error) {
	result := make(map[string]*SyncStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		recordType := entry.Name()
		status, err := f.LoadStatus(ctx, recordType)
		if err != nil {
			continue
		}
		result[recordType] = status
	}

	return result, nil
}
