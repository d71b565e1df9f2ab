package job

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in process memory. Nothing survives a restart;
// configure DB_PATH to use SQLiteRepository instead.
//
// With a retention limit, saving a new job beyond the limit evicts the oldest
// finished jobs. Queued and running jobs are never evicted.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]*Job
	retention int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithRetention caps how many jobs are kept. Zero or less means no cap.
func WithRetention(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.retention = n
	}
}

// NewMemoryRepository returns an empty repository configured by opts.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{byID: make(map[string]*Job)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a copy of j, replacing any job with the same ID.
func (r *MemoryRepository) Save(ctx context.Context, j *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.byID[j.ID]
	r.byID[j.ID] = j.Clone()
	if !existed {
		r.evictLocked()
	}
	return nil
}

// FindByID returns a copy of the job with the given ID, or ErrJobNotFound.
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if j, ok := r.byID[id]; ok {
		return j.Clone(), nil
	}
	return nil, ErrJobNotFound
}

// List returns copies of every job, oldest first. Jobs created at the same
// instant are ordered by ID.
func (r *MemoryRepository) List(ctx context.Context) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.byID))
	for _, j := range r.byID {
		jobs = append(jobs, j.Clone())
	}
	r.mu.RUnlock()

	sortByCreation(jobs)
	return jobs, nil
}

// Delete removes the job with the given ID, or returns ErrJobNotFound.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.byID, id)
	return nil
}

// evictLocked drops the oldest terminal jobs until the retention limit holds.
// The caller must hold r.mu for writing.
func (r *MemoryRepository) evictLocked() {
	excess := len(r.byID) - r.retention
	if r.retention <= 0 || excess <= 0 {
		return
	}

	var finished []*Job
	for _, j := range r.byID {
		if j.IsTerminal() {
			finished = append(finished, j)
		}
	}
	sortByCreation(finished)

	for _, j := range finished[:min(excess, len(finished))] {
		delete(r.byID, j.ID)
	}
}

func sortByCreation(jobs []*Job) {
	slices.SortStableFunc(jobs, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
