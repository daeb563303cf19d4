// Package telemetry defines the fire-and-forget observability sink the
// pipeline reports to. Sinks must never fail a request: the pipeline calls
// them best-effort and swallows panics.
package telemetry

import (
	"context"
	"time"
)

// Breadcrumb is one step in the trail leading up to a potential error.
type Breadcrumb struct {
	Category  string
	Message   string
	Data      map[string]any
	Timestamp time.Time
}

// Sink receives breadcrumbs and captured errors.
type Sink interface {
	AddBreadcrumb(ctx context.Context, crumb Breadcrumb)
	CaptureException(ctx context.Context, err error, data map[string]any)
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) AddBreadcrumb(context.Context, Breadcrumb)               {}
func (Nop) CaptureException(context.Context, error, map[string]any) {}
