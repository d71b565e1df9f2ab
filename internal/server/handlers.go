package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/mediaops/internal/job"
	"github.com/maauso/mediaops/internal/media"
	"github.com/maauso/mediaops/internal/storage"
)

// maxUploadBytes caps the size of a POST /files body.
const maxUploadBytes = 2 << 30

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	processor          media.Processor
	storage            storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, processor media.Processor, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		processor:          processor,
		storage:            store,
		validator:          newValidator(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// newValidator registers the enum checks used by the job DTOs.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("transition", func(fl validator.FieldLevel) bool {
		_, err := media.ParseTransition(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("lut", func(fl validator.FieldLevel) bool {
		_, err := media.ParseLUT(fl.Field().String())
		return err == nil
	})
	return v
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Catalog handles GET /catalog requests.
func (h *Handlers) Catalog(w http.ResponseWriter, _ *http.Request) {
	resp := CatalogResponse{
		Operations:  make([]string, 0, len(job.Operations)),
		Transitions: make([]string, 0, len(media.Transitions)),
		LUTs:        make([]string, 0, len(media.LUTs)),
	}
	for _, op := range job.Operations {
		resp.Operations = append(resp.Operations, string(op))
	}
	for _, t := range media.Transitions {
		resp.Transitions = append(resp.Transitions, string(t))
	}
	for _, l := range media.LUTs {
		resp.LUTs = append(resp.LUTs, string(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Probe handles POST /probe requests. It runs synchronously.
func (h *Handlers) Probe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	meta, err := h.processor.Probe(r.Context(), req.Path)
	if err != nil {
		h.writeMediaError(w, "probe", err)
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Width:    meta.Width,
		Height:   meta.Height,
		Duration: meta.Duration,
	})
}

// Upload handles POST /files requests. The multipart field "file" is stored
// in the working directory and its server path returned.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body", "INVALID_MULTIPART")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart body", "INVALID_MULTIPART")
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		path, err := h.storage.SaveTemp(r.Context(), filepath.Base(part.FileName()), part)
		_ = part.Close()
		if err != nil {
			h.logger.Error("failed to store upload",
				slog.String("filename", part.FileName()),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to store file", "UPLOAD_FAILED")
			return
		}

		h.logger.Info("file uploaded", slog.String("path", path))
		writeJSON(w, http.StatusCreated, UploadResponse{Path: path})
		return
	}

	writeError(w, http.StatusBadRequest, `multipart field "file" is required`, "MISSING_FILE")
}

// newJobRequest returns an empty DTO for the operation.
func newJobRequest(op job.Operation) (jobRequest, bool) {
	switch op {
	case job.OpConcatenate:
		return &ConcatenateJobRequest{}, true
	case job.OpSplit:
		return &SplitJobRequest{}, true
	case job.OpTransition:
		return &TransitionJobRequest{}, true
	case job.OpOverlay:
		return &OverlayJobRequest{}, true
	case job.OpSolidColor:
		return &ColorJobRequest{}, true
	case job.OpLUT:
		return &LUTJobRequest{}, true
	case job.OpText:
		return &TextJobRequest{}, true
	default:
		return nil, false
	}
}

// CreateJob handles POST /jobs/{operation} requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	op := job.Operation(r.PathValue("operation"))
	req, ok := newJobRequest(op)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown operation: "+string(op), "UNKNOWN_OPERATION")
		return
	}

	if !h.decodeAndValidate(w, r, req) {
		return
	}

	mediaReq, err := req.mediaRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	payload, err := json.Marshal(mediaReq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode request", "JOB_CREATION_FAILED")
		return
	}

	createdJob, err := h.service.Submit(r.Context(), job.SubmitInput{
		Operation: op,
		Payload:   payload,
		PushToS3:  req.pushToS3(),
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("operation", string(op)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	if h.enableAsyncProcess {
		h.service.Go(r.Context(), createdJob.ID)
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, "job is still running", "JOB_ACTIVE")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response and returns false on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeMediaError maps media errors onto HTTP status codes.
func (h *Handlers) writeMediaError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, media.ErrInputNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "INPUT_NOT_FOUND")
	case errors.Is(err, media.ErrNoVideoStream),
		errors.Is(err, media.ErrMissingDimensions),
		errors.Is(err, media.ErrMalformedProbeOutput):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "UNSUPPORTED_MEDIA")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "operation cancelled", "CANCELLED")
	default:
		h.logger.Error("media operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error(), "MEDIA_FAILED")
	}
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Operation: string(j.Operation),
		Status:    string(j.Status),
		Error:     j.Error,
		Outputs:   j.Outputs,
		URLs:      j.URLs,
		CreatedAt: j.CreatedAt,
	}
	if resp.Outputs == nil {
		resp.Outputs = []string{}
	}
	resp.StartedAt = optTime(j.StartedAt)
	resp.CompletedAt = optTime(j.CompletedAt)
	return resp
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
