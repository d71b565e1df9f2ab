package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores job snapshots. Implementations copy jobs on the way in
// and out, so callers never share a *Job with the store.
type Repository interface {
	// Save inserts the job or replaces the stored copy with the same ID.
	Save(ctx context.Context, job *Job) error
	// FindByID returns ErrJobNotFound for unknown IDs.
	FindByID(ctx context.Context, id string) (*Job, error)
	// List returns every stored job ordered by creation time, oldest first.
	List(ctx context.Context) ([]*Job, error)
	// Delete returns ErrJobNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error
}
