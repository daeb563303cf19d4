package telemetry

import (
	"context"
	"log/slog"
)

// SlogSink reports breadcrumbs and exceptions to a structured logger. The
// real client forwards to a crash reporter; locally the log is the trail.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps a logger as a telemetry sink.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) AddBreadcrumb(ctx context.Context, crumb Breadcrumb) {
	s.logger.DebugContext(ctx, "breadcrumb",
		"category", crumb.Category,
		"message", crumb.Message,
		"data", crumb.Data,
	)
}

func (s *SlogSink) CaptureException(ctx context.Context, err error, data map[string]any) {
	s.logger.ErrorContext(ctx, "captured exception",
		"error", err,
		"data", data,
	)
}
