// Package logger constructs the structured JSON logger used across aegis.
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures logger construction.
type Options struct {
	Level slog.Level
	// FilePath, when set, mirrors log output to a size-rotated local file.
	// Client processes keep a short local log history for support bundles.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a structured JSON logger using slog.
func New() *slog.Logger {
	return NewWithOptions(Options{Level: slog.LevelInfo})
}

// NewWithOptions returns a JSON logger writing to stdout and, when FilePath
// is set, to a rotating file as well.
func NewWithOptions(opts Options) *slog.Logger {
	var w io.Writer = os.Stdout
	if opts.FilePath != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		}
		w = io.MultiWriter(os.Stdout, rotated)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler)
}
