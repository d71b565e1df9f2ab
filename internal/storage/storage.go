// Package storage keeps the files media jobs read and write.
// LocalStorage manages a working directory on disk; S3Storage adds upload of
// finished outputs to a bucket.
package storage

import (
	"context"
	"io"
)

// Storage is what the job service needs from a file backend.
type Storage interface {
	// SaveTemp stores data as a new file named after name and returns its path.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)
	// LoadTemp opens a stored file. The caller closes it.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)
	// CleanupTemp removes paths, skipping those already gone.
	CleanupTemp(ctx context.Context, paths []string) error
	// JobDir returns the directory reserved for jobID, creating it on first use.
	JobDir(ctx context.Context, jobID string) (string, error)
	// UploadToS3 delivers data under key and returns its public URL, or
	// ErrS3NotConfigured when no bucket is set up.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)
