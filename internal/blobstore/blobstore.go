// Package blobstore writes, reads, and deletes staged files under a
// content-addressed tool tree rooted at a configured store directory
// (component C3). Every write is staged as a batch: a failure partway
// through triggers rollback of everything already written for that batch.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"codenerd/toollib/internal/logging"
	"codenerd/toollib/internal/sanitize"
	"codenerd/toollib/internal/staging"
)

// Store writes and deletes blobs beneath Root using stored relative paths
// produced by internal/sanitize and internal/staging.
type Store struct {
	Root string
}

// New returns a Store rooted at root. root is created lazily on first write.
func New(root string) *Store {
	return &Store{Root: root}
}

// Resolve turns a stored relative path into an absolute path beneath the
// store root, rejecting anything that would escape it.
func (s *Store) Resolve(storedRelPath string) (string, error) {
	normalized, err := sanitize.NormalizeStoredRelPath(storedRelPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(normalized)), nil
}

// Write durably writes every staged file to disk and returns the absolute
// paths written, in order. On any failure it rolls back everything already
// written in this call before returning the error (I4).
func (s *Store) Write(files []staging.StagedFile) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Write")
	defer timer.Stop()

	written := make([]string, 0, len(files))

	for _, file := range files {
		absolutePath, err := s.Resolve(file.StoredRelPath)
		if err != nil {
			s.Rollback(written)
			return nil, err
		}

		if err := os.MkdirAll(filepath.Dir(absolutePath), 0o755); err != nil {
			s.Rollback(written)
			return nil, fmt.Errorf("create destination directory: %w", err)
		}
		if err := os.WriteFile(absolutePath, file.Bytes, 0o644); err != nil {
			s.Rollback(written)
			return nil, fmt.Errorf("write %s: %w", file.StoredRelPath, err)
		}

		written = append(written, absolutePath)
	}

	logging.Get(logging.CategoryStore).Info("wrote %d files under %s", len(written), s.Root)
	return written, nil
}

// Rollback best-effort deletes every path in paths. It never returns an
// error to the caller — failures here are diagnostic only, aggregated with
// multierr and logged, never surfaced to the operation that triggered the
// rollback.
func (s *Store) Rollback(paths []string) {
	var errs error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	if errs != nil {
		logging.Get(logging.CategoryStore).Warn("rollback encountered errors: %v", errs)
	}
}

// Read returns the bytes stored at storedRelPath.
func (s *Store) Read(storedRelPath string) ([]byte, error) {
	absolutePath, err := s.Resolve(storedRelPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", storedRelPath, err)
	}
	return data, nil
}

// DeleteToolFolder removes every version and file belonging to toolID.
func (s *Store) DeleteToolFolder(toolID string) error {
	safeToolID, err := sanitize.ValidateStorageSegment("tool_id", toolID)
	if err != nil {
		return err
	}
	folder := filepath.Join(s.Root, "tools", safeToolID)
	if _, err := os.Stat(folder); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat tool folder: %w", err)
	}
	if err := os.RemoveAll(folder); err != nil {
		return fmt.Errorf("remove tool folder: %w", err)
	}
	logging.Get(logging.CategoryStore).Info("deleted tool folder %s", safeToolID)
	return nil
}

// DeleteVersionFolder removes one version's files, then removes the parent
// tool folder too if it is left empty.
func (s *Store) DeleteVersionFolder(toolID, versionID string) error {
	safeToolID, err := sanitize.ValidateStorageSegment("tool_id", toolID)
	if err != nil {
		return err
	}
	safeVersionID, err := sanitize.ValidateStorageSegment("version_id", versionID)
	if err != nil {
		return err
	}

	toolFolder := filepath.Join(s.Root, "tools", safeToolID)
	versionFolder := filepath.Join(toolFolder, safeVersionID)

	if _, err := os.Stat(versionFolder); err == nil {
		if err := os.RemoveAll(versionFolder); err != nil {
			return fmt.Errorf("remove version folder: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat version folder: %w", err)
	}

	entries, err := os.ReadDir(toolFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read tool folder: %w", err)
	}
	if len(entries) == 0 {
		if err := os.Remove(toolFolder); err != nil {
			return fmt.Errorf("remove empty tool folder: %w", err)
		}
	}

	logging.Get(logging.CategoryStore).Info("deleted version folder %s/%s", safeToolID, safeVersionID)
	return nil
}
