// Package server provides the HTTP API for mediaops.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/mediaops/internal/media"
)

// jobRequest is implemented by every POST /jobs/{operation} body.
type jobRequest interface {
	// mediaRequest converts the validated DTO into the media package request.
	mediaRequest() (any, error)
	// pushToS3 reports whether outputs should be uploaded.
	pushToS3() bool
}

// Delivery is embedded in every job request.
type Delivery struct {
	// PushToS3 indicates whether to upload the outputs to S3.
	PushToS3 bool `json:"push_to_s3"`
}

func (d Delivery) pushToS3() bool { return d.PushToS3 }

// ConcatenateJobRequest is the body of POST /jobs/concatenate.
type ConcatenateJobRequest struct {
	First  string `json:"first" validate:"required"`
	Second string `json:"second" validate:"required"`
	Output string `json:"output" validate:"required"`
	Delivery
}

func (r ConcatenateJobRequest) mediaRequest() (any, error) {
	return media.ConcatenateRequest{First: r.First, Second: r.Second, Output: r.Output}, nil
}

// SplitJobRequest is the body of POST /jobs/split.
type SplitJobRequest struct {
	Input  string  `json:"input" validate:"required"`
	Before string  `json:"before" validate:"required"`
	After  string  `json:"after" validate:"required,nefield=Before"`
	At     float64 `json:"at" validate:"gte=0"`
	Delivery
}

func (r SplitJobRequest) mediaRequest() (any, error) {
	return media.SplitRequest{Input: r.Input, Before: r.Before, After: r.After, At: r.At}, nil
}

// TransitionJobRequest is the body of POST /jobs/transition.
type TransitionJobRequest struct {
	First      string   `json:"first" validate:"required"`
	Second     string   `json:"second" validate:"required"`
	Output     string   `json:"output" validate:"required"`
	Transition string   `json:"transition" validate:"required,transition"`
	Duration   float64  `json:"duration" validate:"gt=0"`
	Offset     *float64 `json:"offset,omitempty" validate:"omitempty,gte=0"`
	Delivery
}

func (r TransitionJobRequest) mediaRequest() (any, error) {
	t, err := media.ParseTransition(r.Transition)
	if err != nil {
		return nil, err
	}
	return media.TransitionRequest{
		First:      r.First,
		Second:     r.Second,
		Output:     r.Output,
		Transition: t,
		Duration:   r.Duration,
		Offset:     r.Offset,
	}, nil
}

// OverlayJobRequest is the body of POST /jobs/overlay.
type OverlayJobRequest struct {
	Input   string  `json:"input" validate:"required"`
	Output  string  `json:"output" validate:"required"`
	Image   string  `json:"image" validate:"required"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Opacity float64 `json:"opacity" validate:"gte=0,lte=1"`
	Width   *int    `json:"width,omitempty" validate:"omitempty,min=1,max=8192"`
	Height  *int    `json:"height,omitempty" validate:"omitempty,min=1,max=8192"`
	Delivery
}

func (r OverlayJobRequest) mediaRequest() (any, error) {
	return media.ImageOverlayRequest{
		Input:   r.Input,
		Output:  r.Output,
		Image:   r.Image,
		X:       r.X,
		Y:       r.Y,
		Opacity: r.Opacity,
		Width:   r.Width,
		Height:  r.Height,
	}, nil
}

// ColorJobRequest is the body of POST /jobs/color.
type ColorJobRequest struct {
	Color  string `json:"color" validate:"required"`
	Width  int    `json:"width" validate:"required,min=1,max=8192"`
	Height int    `json:"height" validate:"required,min=1,max=8192"`
	Output string `json:"output" validate:"required"`
	Delivery
}

func (r ColorJobRequest) mediaRequest() (any, error) {
	return media.SolidColorRequest{Color: r.Color, Width: r.Width, Height: r.Height, Output: r.Output}, nil
}

// LUTJobRequest is the body of POST /jobs/lut.
type LUTJobRequest struct {
	Input  string `json:"input" validate:"required"`
	Output string `json:"output" validate:"required"`
	LUT    string `json:"lut" validate:"required,lut"`
	Delivery
}

func (r LUTJobRequest) mediaRequest() (any, error) {
	l, err := media.ParseLUT(r.LUT)
	if err != nil {
		return nil, err
	}
	return media.LUTRequest{Input: r.Input, Output: r.Output, LUT: l}, nil
}

// TextJobRequest is the body of POST /jobs/text.
type TextJobRequest struct {
	Input    string `json:"input" validate:"required"`
	Output   string `json:"output" validate:"required"`
	FontFile string `json:"font_file" validate:"required"`
	Text     string `json:"text" validate:"required"`
	FontSize int    `json:"font_size" validate:"required,min=1,max=1000"`
	Delivery
}

func (r TextJobRequest) mediaRequest() (any, error) {
	return media.TextOverlayRequest{
		Input:    r.Input,
		Output:   r.Output,
		FontFile: r.FontFile,
		Text:     r.Text,
		FontSize: r.FontSize,
	}, nil
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Outputs are the files the operation wrote on the server.
	Outputs []string `json:"outputs"`
	// URLs are the S3 locations of Outputs when push_to_s3 was set.
	URLs        []string   `json:"urls,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for GET /jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ProbeRequest is the body of POST /probe.
type ProbeRequest struct {
	Path string `json:"path" validate:"required"`
}

// ProbeResponse describes the first video stream of a file.
type ProbeResponse struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
}

// UploadResponse is returned by POST /files.
type UploadResponse struct {
	// Path is where the server stored the file; use it as an input path.
	Path string `json:"path"`
}

// CatalogResponse lists the values accepted for enum fields.
type CatalogResponse struct {
	Operations  []string `json:"operations"`
	Transitions []string `json:"transitions"`
	LUTs        []string `json:"luts"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
