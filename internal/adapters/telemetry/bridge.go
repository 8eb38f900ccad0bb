package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/rnaflow/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*Bridge)(nil)

// Bridge is a span processor that turns task spans into renderer events.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a Bridge reporting to renderer. A nil renderer drops every span.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart reports a started task with the reason it runs.
func (b *Bridge) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() {
		return
	}
	attrs := readTaskAttributes(s.Attributes())
	b.renderer.OnTaskStart(s.SpanContext().SpanID().String(), s.Name(), attrs.reason, s.StartTime(), attrs.upToDate)
}

// OnEnd reports the outcome of a task. An error status becomes the task error.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil || !s.SpanContext().IsValid() {
		return
	}

	var err error
	if status := s.Status(); status.Code == codes.Error {
		msg := status.Description
		if msg == "" {
			msg = "task failed"
		}
		err = errors.New(msg)
	}

	attrs := readTaskAttributes(s.Attributes())
	b.renderer.OnTaskComplete(s.SpanContext().SpanID().String(), s.EndTime(), err, attrs.upToDate)
}

// ForceFlush is a no-op; events are delivered synchronously.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown is a no-op; the renderer is stopped by its owner.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

type taskAttributes struct {
	upToDate bool
	reason   string
}

func readTaskAttributes(kvs []attribute.KeyValue) taskAttributes {
	var attrs taskAttributes
	for _, kv := range kvs {
		switch kv.Key {
		case UpToDateKey:
			attrs.upToDate = kv.Value.AsBool()
		case ReasonKey:
			attrs.reason = kv.Value.AsString()
		}
	}
	return attrs
}
