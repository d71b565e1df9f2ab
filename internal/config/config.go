// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/mediaops/internal/media"
)

// Static errors for configuration validation.
var (
	// ErrInvalidTransitionMapping is returned when TRANSITION_MAPPING is neither legacy nor corrected.
	ErrInvalidTransitionMapping = errors.New("config: TRANSITION_MAPPING must be \"legacy\" or \"corrected\"")
	// ErrInvalidMaxConcurrentJobs is returned when MAX_CONCURRENT_JOBS is not positive.
	ErrInvalidMaxConcurrentJobs = errors.New("config: MAX_CONCURRENT_JOBS must be positive")
	// ErrInvalidOverlaySize is returned when OVERLAY_DEFAULT_SIZE is not positive.
	ErrInvalidOverlaySize = errors.New("config: OVERLAY_DEFAULT_SIZE must be positive")
	// ErrIncompleteS3Config is returned when only one of S3_BUCKET and S3_REGION is set.
	ErrIncompleteS3Config = errors.New("config: S3_BUCKET and S3_REGION must be set together")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s" json:"shutdown_timeout"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/mediaops" json:"temp_dir"`
	DBPath  string `env:"DB_PATH" json:"db_path,omitempty"` // empty keeps jobs in memory

	// Media settings
	FFmpegPath         string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath        string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	VideoCodec         string `env:"VIDEO_CODEC, default=libx264" json:"video_codec"`
	AudioCodec         string `env:"AUDIO_CODEC, default=aac" json:"audio_codec"`
	AudioBitrate       string `env:"AUDIO_BITRATE, default=192k" json:"audio_bitrate"`
	OverlayDefaultSize int    `env:"OVERLAY_DEFAULT_SIZE, default=1080" json:"overlay_default_size"`
	LUTDir             string `env:"LUT_DIR, default=." json:"lut_dir"`
	TransitionMapping  string `env:"TRANSITION_MAPPING, default=legacy" json:"transition_mapping"`

	// Processing settings
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`
	MaxRetainedJobs   int `env:"MAX_RETAINED_JOBS, default=0" json:"max_retained_jobs"` // in-memory only, 0 keeps all

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Assistant settings
	OllamaHost     string `env:"OLLAMA_HOST, default=http://localhost:11434" json:"ollama_host"`
	OllamaModel    string `env:"OLLAMA_MODEL, default=llama3.2" json:"ollama_model"`
	WeatherBaseURL string `env:"WEATHER_BASE_URL, default=https://wttr.in" json:"weather_base_url"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !media.TransitionMapping(strings.ToLower(c.TransitionMapping)).Valid() {
		return fmt.Errorf("%w, got %q", ErrInvalidTransitionMapping, c.TransitionMapping)
	}
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidMaxConcurrentJobs
	}
	if c.OverlayDefaultSize <= 0 {
		return ErrInvalidOverlaySize
	}
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrIncompleteS3Config
	}
	return nil
}

// MediaSettings returns the ffmpeg settings described by the configuration.
func (c *Config) MediaSettings() media.Settings {
	s := media.DefaultSettings()
	s.FFmpegPath = c.FFmpegPath
	s.FFprobePath = c.FFprobePath
	s.VideoCodec = c.VideoCodec
	s.AudioCodec = c.AudioCodec
	s.AudioBitrate = c.AudioBitrate
	s.OverlaySize = c.OverlayDefaultSize
	s.LUTDir = c.LUTDir
	s.Transitions = media.TransitionMapping(strings.ToLower(c.TransitionMapping))
	return s
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, DBPath: %s, FFmpegPath: %s, VideoCodec: %s, AudioCodec: %s, TransitionMapping: %s, MaxConcurrentJobs: %d, S3Bucket: %s, S3Region: %s, OllamaHost: %s, OllamaModel: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DBPath,
		c.FFmpegPath,
		c.VideoCodec,
		c.AudioCodec,
		c.TransitionMapping,
		c.MaxConcurrentJobs,
		c.S3Bucket,
		c.S3Region,
		c.OllamaHost,
		c.OllamaModel,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
