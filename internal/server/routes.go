package server

import (
	"log/slog"
	"net/http"
)

// Config controls the HTTP surface independent of the handlers.
type Config struct {
	// AllowedOrigins lists origins allowed by CORS; "*" allows any.
	AllowedOrigins []string
}

// DefaultConfig allows requests from any origin.
func DefaultConfig() Config {
	return Config{AllowedOrigins: []string{"*"}}
}

// routes maps method-qualified ServeMux patterns to handlers.
func (h *Handlers) routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /health":            h.Health,
		"GET /catalog":           h.Catalog,
		"POST /probe":            h.Probe,
		"POST /files":            h.Upload,
		"GET /jobs":              h.ListJobs,
		"POST /jobs/{operation}": h.CreateJob,
		"GET /jobs/{id}":         h.GetJob,
		"DELETE /jobs/{id}":      h.DeleteJob,
	}
}

// NewRouter registers every route on a ServeMux and wraps it with request
// ID, panic recovery, access logging and CORS, outermost first.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()
	for pattern, handler := range h.routes() {
		mux.HandleFunc(pattern, handler)
	}

	return ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)(mux)
}
