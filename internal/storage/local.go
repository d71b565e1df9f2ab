package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrS3NotConfigured is returned by UploadToS3 when no bucket is configured.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")

	// ErrInvalidName is returned when a name would escape the working directory.
	ErrInvalidName = errors.New("invalid file name")
)

const dirPerm = 0o750

// LocalStorage keeps working files under a single directory on disk.
// Uploaded inputs land directly in it and each job gets its own
// subdirectory named after the job ID.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root if needed. An empty root selects
// $TMPDIR/mediaops.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "mediaops")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create working directory %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) TempDir() string {
	return s.root
}

// SaveTemp writes data to a new file in the working directory. The stored
// name is name with a random suffix inserted before the extension, so ffmpeg
// still infers the container from it.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := alive(ctx); err != nil {
		return "", err
	}
	if err := plainName(name); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	f, err := os.CreateTemp(s.root, strings.TrimSuffix(name, ext)+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, copyErr := io.Copy(f, data)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), nil
}

// LoadTemp opens path for reading. The caller closes the reader.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 - paths come from job outputs
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	return f, nil
}

// JobDir returns <root>/<jobID>, creating it if needed.
func (s *LocalStorage) JobDir(ctx context.Context, jobID string) (string, error) {
	if err := alive(ctx); err != nil {
		return "", err
	}
	if err := plainName(jobID); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}
	return dir, nil
}

// CleanupTemp removes every path it can. Missing files are not an error;
// all other failures are joined into the returned error. Directories are
// removed only when empty.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := alive(ctx); err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (s *LocalStorage) UploadToS3(context.Context, string, io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

func alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}

// plainName accepts a single path element that stays inside its directory.
func plainName(name string) error {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
