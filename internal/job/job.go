// Package job runs media operations in the background and tracks their state.
// A Job records one operation request, its lifecycle and the files it produced.
package job

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/mediaops/internal/job/id"
)

// Operation names the media operation a job runs.
type Operation string

const (
	// OpConcatenate joins two videos back to back.
	OpConcatenate Operation = "concatenate"
	// OpSplit cuts a video in two at a timestamp.
	OpSplit Operation = "split"
	// OpTransition merges two videos with an xfade transition.
	OpTransition Operation = "transition"
	// OpOverlay composites an image over a video.
	OpOverlay Operation = "overlay"
	// OpSolidColor renders a single frame of a solid color.
	OpSolidColor Operation = "color"
	// OpLUT color grades a video with a bundled LUT.
	OpLUT Operation = "lut"
	// OpText draws centered text on a video.
	OpText Operation = "text"
)

// Operations lists every operation a job can run.
var Operations = []Operation{OpConcatenate, OpSplit, OpTransition, OpOverlay, OpSolidColor, OpLUT, OpText}

// IsValid returns true if the operation is known.
func (o Operation) IsValid() bool {
	return slices.Contains(Operations, o)
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a free worker slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates ffmpeg is working on the job.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Job represents one media operation run in the background.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Operation is what the job runs.
	Operation Operation
	// Payload is the operation request as submitted.
	Payload json.RawMessage
	// Status is the current job state.
	Status Status
	// Error contains any error message if the job failed.
	Error string
	// Outputs are the local files the operation wrote.
	Outputs []string
	// URLs are the S3 locations of Outputs if PushToS3 was true.
	URLs []string
	// PushToS3 indicates whether to upload the outputs to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(op Operation, payload json.RawMessage) *Job {
	return NewWithID(id.Generate(), op, payload)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, op Operation, payload json.RawMessage) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Operation: op,
		Payload:   payload,
		Status:    StatusInQueue,
		Outputs:   make([]string, 0),
		URLs:      make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutputs records the files the operation wrote and their uploaded URLs.
func (j *Job) SetOutputs(paths, urls []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outputs = slices.Clone(paths)
	j.URLs = slices.Clone(urls)
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Operation:   j.Operation,
		Payload:     slices.Clone(j.Payload),
		Status:      j.Status,
		Error:       j.Error,
		Outputs:     slices.Clone(j.Outputs),
		URLs:        slices.Clone(j.URLs),
		PushToS3:    j.PushToS3,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
