package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

const backendName = "fs"

const maxCreateAttempts = 4

// Backend is a filesystem implementation of the sealedcontent.BlobStore interface
type Backend struct {
	baseDir string
}

var _ sealedcontent.BlobStore = (*Backend)(nil)

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: baseDir}, nil
}

// path maps a key to a file inside baseDir, rejecting keys that escape it
func (b *Backend) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p == b.baseDir || !strings.HasPrefix(p, b.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes base directory", key)
	}
	return p, nil
}

// Write stores data by writing a temp file in the target directory and
// renaming it into place, so readers never observe a partial file
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	filePath, err := b.path(key)
	if err != nil {
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: err}
	}

	tmp, err := createTemp(filepath.Dir(filePath))
	if err != nil {
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: fmt.Errorf("failed to sync file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: fmt.Errorf("failed to close file: %w", err)}
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "write", Err: fmt.Errorf("failed to move file into place: %w", err)}
	}
	return nil
}

// createTemp opens a temp file in dir, creating dir as needed. A concurrent
// Delete may prune dir between MkdirAll and CreateTemp, so a vanished
// directory is recreated a bounded number of times.
func createTemp(dir string) (*os.File, error) {
	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var tmp *os.File
		tmp, err = os.CreateTemp(dir, ".tmp-*")
		if err == nil {
			return tmp, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create file: %w", err)
}

// Read returns the contents of the file for key
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "read", Err: err}
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "read", Err: sealedcontent.ErrBlobNotFound}
	}
	if err != nil {
		return nil, &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "read", Err: err}
	}
	return data, nil
}

// Delete removes the file for key; a missing file is not an error
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.path(key)
	if err != nil {
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &sealedcontent.StorageError{Backend: backendName, Key: key, Op: "delete", Err: fmt.Errorf("failed to delete file: %w", err)}
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
