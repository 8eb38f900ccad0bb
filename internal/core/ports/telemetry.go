package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals the set of tasks selected for a run with their dependencies.
	EmitPlan(ctx context.Context, taskNames []string, deps map[string][]string, targets []string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// UpToDate marks a task span whose outputs were fresh and that did not execute.
	UpToDate bool
	// Reason says why a task executes.
	Reason string
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithUpToDate marks the span as a task that was skipped because its outputs are fresh.
func WithUpToDate() SpanOption {
	return func(c *SpanConfig) {
		c.UpToDate = true
	}
}

// WithReason records why the task of the span executes.
func WithReason(reason string) SpanOption {
	return func(c *SpanConfig) {
		c.Reason = reason
	}
}
