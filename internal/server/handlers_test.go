package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mediaops/internal/job"
	"github.com/maauso/mediaops/internal/media"
	"github.com/maauso/mediaops/internal/storage"
)

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Concatenate(ctx context.Context, req media.ConcatenateRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) Split(ctx context.Context, req media.SplitRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) MergeWithTransition(ctx context.Context, req media.TransitionRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) OverlayImage(ctx context.Context, req media.ImageOverlayRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) CreateSolidColorImage(ctx context.Context, req media.SolidColorRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) ApplyLUT(ctx context.Context, req media.LUTRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) AddCenteredText(ctx context.Context, req media.TextOverlayRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockProcessor) Probe(ctx context.Context, path string) (*media.VideoMetadata, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.VideoMetadata), args.Error(1)
}

type testEnv struct {
	handlers  *Handlers
	processor *mockProcessor
	service   *job.Service
	repo      job.Repository
	store     *storage.LocalStorage
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()
	repo := job.NewMemoryRepository()
	processor := &mockProcessor{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	logger := testLogger()

	svc := job.NewService(repo, processor, store, logger)

	// Disable async processing by default so tests control when jobs run
	opts = append([]HandlerOption{WithAsyncProcessing(false)}, opts...)
	return &testEnv{
		handlers:  NewHandlers(svc, processor, store, logger, opts...),
		processor: processor,
		service:   svc,
		repo:      repo,
		store:     store,
	}
}

func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	env.handlers.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.Catalog(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CatalogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Transitions, 22)
	assert.Contains(t, resp.Transitions, "circleopen")
	assert.ElementsMatch(t, []string{"picturefx-leica-m8-bw-125", "retro-warm"}, resp.LUTs)
	assert.Contains(t, resp.Operations, "concatenate")
}

func TestProbe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		env.processor.On("Probe", mock.Anything, "/videos/in.mp4").
			Return(&media.VideoMetadata{Width: 1920, Height: 1080, Duration: 12.48}, nil)

		rec := httptest.NewRecorder()
		env.handlers.Probe(rec, postJSON(t, "/probe", ProbeRequest{Path: "/videos/in.mp4"}))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp ProbeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, ProbeResponse{Width: 1920, Height: 1080, Duration: 12.48}, resp)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing input", &media.NotFoundError{What: "input video", Path: "/x.mp4"}, http.StatusNotFound, "INPUT_NOT_FOUND"},
		{"no video stream", media.ErrNoVideoStream, http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA"},
		{"missing dimensions", media.ErrMissingDimensions, http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA"},
		{"ffprobe failure", media.ErrProbeFailed, http.StatusInternalServerError, "MEDIA_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.processor.On("Probe", mock.Anything, "/x.mp4").Return(nil, tt.err)

			rec := httptest.NewRecorder()
			env.handlers.Probe(rec, postJSON(t, "/probe", ProbeRequest{Path: "/x.mp4"}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}

	t.Run("missing path", func(t *testing.T) {
		env := newTestEnv(t)

		rec := httptest.NewRecorder()
		env.handlers.Probe(rec, postJSON(t, "/probe", `{}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		env.processor.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	})
}

func TestCreateJob_Success(t *testing.T) {
	env := newTestEnv(t)

	req := postJSON(t, "/jobs/concatenate", ConcatenateJobRequest{
		First:  "/videos/a.mp4",
		Second: "/videos/b.mp4",
		Output: "joined.mp4",
	})
	req.SetPathValue("operation", "concatenate")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	saved, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, job.OpConcatenate, saved.Operation)

	var payload media.ConcatenateRequest
	require.NoError(t, json.Unmarshal(saved.Payload, &payload))
	assert.Equal(t, "/videos/a.mp4", payload.First)
	assert.Equal(t, filepath.Join(env.store.TempDir(), resp.ID, "joined.mp4"), payload.Output)
}

func TestCreateJob_NormalizesEnums(t *testing.T) {
	env := newTestEnv(t)

	req := postJSON(t, "/jobs/transition", map[string]any{
		"first":      "/a.mp4",
		"second":     "/b.mp4",
		"output":     "/out.mp4",
		"transition": "Circle-Open",
		"duration":   1.5,
		"push_to_s3": true,
	})
	req.SetPathValue("operation", "transition")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	saved, err := env.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.True(t, saved.PushToS3)

	var payload media.TransitionRequest
	require.NoError(t, json.Unmarshal(saved.Payload, &payload))
	assert.Equal(t, media.TransitionCircleOpen, payload.Transition)
	assert.Nil(t, payload.Offset)
}

func TestCreateJob_UnknownOperation(t *testing.T) {
	env := newTestEnv(t)

	req := postJSON(t, "/jobs/transcode", `{}`)
	req.SetPathValue("operation", "transcode")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UNKNOWN_OPERATION", decodeError(t, rec).Code)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := postJSON(t, "/jobs/split", "invalid json")
	req.SetPathValue("operation", "split")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateJob_UnknownField(t *testing.T) {
	env := newTestEnv(t)

	req := postJSON(t, "/jobs/lut", `{"input":"a","output":"b","lut":"retro-warm","strength":0.5}`)
	req.SetPathValue("operation", "lut")
	rec := httptest.NewRecorder()

	env.handlers.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		op   string
		body string
	}{
		{"concatenate missing second", "concatenate", `{"first":"a","output":"o"}`},
		{"split negative time", "split", `{"input":"i","before":"a","after":"b","at":-1}`},
		{"split same outputs", "split", `{"input":"i","before":"a","after":"a","at":1}`},
		{"transition unknown name", "transition", `{"first":"a","second":"b","output":"o","transition":"spin","duration":1}`},
		{"transition zero duration", "transition", `{"first":"a","second":"b","output":"o","transition":"fade","duration":0}`},
		{"transition negative offset", "transition", `{"first":"a","second":"b","output":"o","transition":"fade","duration":1,"offset":-2}`},
		{"overlay opacity above one", "overlay", `{"input":"i","output":"o","image":"p","opacity":1.5}`},
		{"overlay zero width", "overlay", `{"input":"i","output":"o","image":"p","width":0}`},
		{"color zero height", "color", `{"color":"red","width":10,"height":0,"output":"o.png"}`},
		{"lut unknown", "lut", `{"input":"i","output":"o","lut":"sepia"}`},
		{"text missing font size", "text", `{"input":"i","output":"o","font_file":"f","text":"t"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := postJSON(t, "/jobs/"+tt.op, tt.body)
			req.SetPathValue("operation", tt.op)
			rec := httptest.NewRecorder()

			env.handlers.CreateJob(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

			jobs, err := env.repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestGetJob_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testJob := job.New(job.OpSolidColor, json.RawMessage(`{}`))
	require.NoError(t, testJob.Start())
	testJob.SetOutputs([]string{"/tmp/black.png"}, []string{"https://bucket/black.png"})
	require.NoError(t, testJob.Complete())
	testJob.PushToS3 = true
	require.NoError(t, env.repo.Save(ctx, testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testJob.ID, resp.ID)
	assert.Equal(t, "color", resp.Operation)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, []string{"/tmp/black.png"}, resp.Outputs)
	assert.Equal(t, []string{"https://bucket/black.png"}, resp.URLs)
	assert.NotNil(t, resp.StartedAt)
	assert.NotNil(t, resp.CompletedAt)
}

func TestGetJob_QueuedHasNoTimestamps(t *testing.T) {
	env := newTestEnv(t)
	testJob := job.New(job.OpText, nil)
	require.NoError(t, env.repo.Save(context.Background(), testJob))

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJob.ID, nil)
	req.SetPathValue("id", testJob.ID)
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.NotContains(t, raw, "started_at")
	assert.NotContains(t, raw, "completed_at")
	assert.Equal(t, []any{}, raw["outputs"])
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetJob_MissingID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/", nil)
	rec := httptest.NewRecorder()

	env.handlers.GetJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, op := range []job.Operation{job.OpSplit, job.OpLUT} {
		require.NoError(t, env.repo.Save(ctx, job.New(op, nil)))
	}

	rec := httptest.NewRecorder()
	env.handlers.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 2)
}

func TestDeleteJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active := job.New(job.OpText, nil)
	require.NoError(t, env.repo.Save(ctx, active))

	done := job.New(job.OpText, nil)
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete())
	require.NoError(t, env.repo.Save(ctx, done))

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"finished job", done.ID, http.StatusNoContent},
		{"active job", active.ID, http.StatusConflict},
		{"unknown job", "op-missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/jobs/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()

			env.handlers.DeleteJob(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	env.handlers.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, env.store.TempDir(), filepath.Dir(resp.Path))
	assert.Equal(t, ".mp4", filepath.Ext(resp.Path))

	content, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(content))
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	env.handlers.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, rec).Code)
}

func TestUpload_NotMultipart(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.Upload(rec, postJSON(t, "/files", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_MULTIPART", decodeError(t, rec).Code)
}

func TestRouter_Integration(t *testing.T) {
	env := newTestEnv(t, WithAsyncProcessing(true))
	router := NewRouter(env.handlers, testLogger(), DefaultConfig())

	// Test health endpoint
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.processor.On("CreateSolidColorImage", mock.Anything, mock.AnythingOfType("media.SolidColorRequest")).Return(nil)

	// Test POST /jobs/{operation}
	req = postJSON(t, "/jobs/color", ColorJobRequest{Color: "black", Width: 800, Height: 50, Output: "black.png"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var createResp CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&createResp))

	env.service.Wait()

	// Test GET /jobs/{id}
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+createResp.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var jobResp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobResp))
	assert.Equal(t, "COMPLETED", jobResp.Status)
	assert.Equal(t, []string{filepath.Join(env.store.TempDir(), createResp.ID, "black.png")}, jobResp.Outputs)

	// Test GET /jobs
	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong method on a known path
	req = httptest.NewRequest(http.MethodPut, "/jobs/"+createResp.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

