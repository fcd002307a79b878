package snapstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/entitlemate/snapshot"
)

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path   string
	direct bool
	logger *slog.Logger

	// mu serializes saves so concurrent posts never interleave their bytes,
	// and keeps readers off a file being rewritten in place.
	mu sync.RWMutex
}

// NewFile returns a file-backed Store. The file is not touched until the
// first Save.
func NewFile(cfg FileConfig, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: cfg.Path, direct: cfg.DirectWrite, logger: logger}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (snapshot.Snapshot, error) {
	return loadRaw(ctx, s.Raw)
}

func (s *FileStore) Raw(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapstore: read %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.direct {
		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			return fmt.Errorf("snapstore: write %s: %w", s.path, err)
		}
		return nil
	}
	return s.replace(data)
}

// replace writes data to a temp file beside the target and renames it over.
func (s *FileStore) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("snapstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("snapstore: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("snapstore: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		s.logger.Warn("snapstore: chmod temp", "path", tmpPath, "error", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("snapstore: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
