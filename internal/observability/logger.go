package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the stdout logger from LOG_LEVEL and LOG_FORMAT and makes it
// the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

// NewWriterLogger is NewLogger for commands whose stdout carries data. It
// logs to w and leaves the slog default alone.
func NewWriterLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	name := strings.ToLower(cfg.LogLevel)
	if name == "warning" {
		name = "warn"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
