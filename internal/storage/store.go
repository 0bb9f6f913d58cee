// Package storage manages the on-disk video download directory.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/reelcache/reelcache/internal/logger"
)

// Store owns the directory that downloaded videos live in.
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates the download directory if needed.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &Store{dir: dir, logger: log}, nil
}

// Dir returns the download directory path.
func (s *Store) Dir() string {
	return s.dir
}

// NewVideoPath allocates a fresh file path for a download.
func (s *Store) NewVideoPath() string {
	return filepath.Join(s.dir, uuid.New().String()+".mp4")
}

// UsedBytes walks the directory and sums file sizes. Used to seed the
// catalog's storage accounting at startup.
func (s *Store) UsedBytes() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan download directory: %w", err)
	}
	return total, nil
}

// Remove deletes one downloaded file and returns how many bytes were
// freed. Removing a missing file frees zero bytes and is not an error.
func (s *Store) Remove(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", path, err)
	}

	s.logger.Debug("Removed video file", "path", path, "bytes", info.Size())
	return info.Size(), nil
}
