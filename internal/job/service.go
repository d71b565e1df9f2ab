package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/mediaops/internal/media"
	"github.com/maauso/mediaops/internal/storage"
)

// ErrJobActive is returned when deleting a job that has not finished.
var ErrJobActive = errors.New("job is still active")

// SubmitInput contains what a caller provides to start a job.
type SubmitInput struct {
	// Operation selects the media operation.
	Operation Operation
	// Payload is the JSON request for that operation.
	Payload json.RawMessage
	// PushToS3 indicates whether to upload the outputs to S3.
	PushToS3 bool
}

// Service runs media operations as jobs.
// At most maxConcurrentJobs operations run at once; the rest wait IN_QUEUE.
type Service struct {
	repo      Repository
	processor media.Processor
	storage   storage.Storage
	logger    *slog.Logger

	sem               *semaphore.Weighted
	maxConcurrentJobs int
	wg                sync.WaitGroup
}

// NewService creates a new Service that allows two concurrent jobs.
func NewService(repo Repository, processor media.Processor, store storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:              repo,
		processor:         processor,
		storage:           store,
		logger:            logger,
		sem:               semaphore.NewWeighted(2),
		maxConcurrentJobs: 2,
	}
}

// SetMaxConcurrentJobs configures how many jobs may run in parallel.
// Call it before submitting work.
func (s *Service) SetMaxConcurrentJobs(n int) {
	if n > 0 {
		s.maxConcurrentJobs = n
		s.sem = semaphore.NewWeighted(int64(n))
	}
}

// Submit validates the input, places relative output paths in the job's
// directory and persists the job in IN_QUEUE status.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Job, error) {
	if !input.Operation.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, string(input.Operation))
	}

	req, err := decodeRequest(input.Operation, input.Payload)
	if err != nil {
		return nil, err
	}

	job := New(input.Operation, nil)
	job.PushToS3 = input.PushToS3

	dir, err := s.storage.JobDir(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("prepare job directory: %w", err)
	}
	payload, err := json.Marshal(placeOutputs(req, dir))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	job.Payload = payload

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("operation", string(job.Operation)),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// Go runs the job in the background. The run outlives ctx cancellation;
// use Wait to block until every background run has finished.
func (s *Service) Go(ctx context.Context, jobID string) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(ctx, jobID); err != nil {
			s.logger.Error("job run failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until all jobs started with Go have returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run executes a queued job and records the outcome.
// Operation failures are stored on the job; the returned error reports only
// problems reaching the repository or the semaphore.
func (s *Service) Run(ctx context.Context, jobID string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for worker slot: %w", err)
	}
	defer s.sem.Release(1)

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return err
	}

	log := s.logger.With(
		slog.String("job_id", job.ID),
		slog.String("operation", string(job.Operation)),
	)
	log.Info("job started")

	outputs, urls, runErr := s.process(ctx, job)
	job.SetOutputs(outputs, urls)

	if runErr != nil {
		log.Error("job failed", slog.String("error", runErr.Error()))
		_ = job.Fail(runErr.Error())
	} else {
		log.Info("job completed", slog.Int("outputs", len(outputs)))
		_ = job.Complete()
	}

	return s.repo.Save(ctx, job)
}

// process runs the operation and uploads its outputs when requested.
func (s *Service) process(ctx context.Context, job *Job) (outputs, urls []string, err error) {
	req, err := decodeRequest(job.Operation, job.Payload)
	if err != nil {
		return nil, nil, err
	}

	if err := execute(ctx, s.processor, req); err != nil {
		return nil, nil, err
	}
	outputs = req.Outputs()

	if !job.PushToS3 {
		return outputs, nil, nil
	}

	urls = make([]string, 0, len(outputs))
	for _, path := range outputs {
		url, err := s.upload(ctx, job.ID, path)
		if err != nil {
			return outputs, urls, err
		}
		urls = append(urls, url)
	}
	return outputs, urls, nil
}

func (s *Service) upload(ctx context.Context, jobID, path string) (string, error) {
	f, err := s.storage.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	key := jobID + "/" + filepath.Base(path)
	url, err := s.storage.UploadToS3(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	s.logger.Info("uploaded output",
		slog.String("job_id", jobID),
		slog.String("url", url),
	)
	return url, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a finished job along with the files it owns inside its job
// directory. Declared outputs are removed too, so a failed run that left
// partial files behind is cleaned up. Paths outside the directory are left alone.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}

	dir, err := s.storage.JobDir(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("locate job directory: %w", err)
	}

	if err := s.storage.CleanupTemp(ctx, append(ownedFiles(job, dir), dir)); err != nil {
		s.logger.Warn("failed to remove job files",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.repo.Delete(ctx, id)
}

// ownedFiles lists the recorded and declared outputs of job that live in dir.
func ownedFiles(job *Job, dir string) []string {
	paths := slices.Clone(job.Outputs)
	if req, err := decodeRequest(job.Operation, job.Payload); err == nil {
		paths = append(paths, req.Outputs()...)
	}

	var owned []string
	for _, p := range paths {
		if strings.HasPrefix(p, dir+string(filepath.Separator)) && !slices.Contains(owned, p) {
			owned = append(owned, p)
		}
	}
	return owned
}
