package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span.
//
// Each span carries:
//   - Name: event.Msg (e.g. "stage completed")
//   - Attributes: featureflow.run_id, featureflow.step,
//     featureflow.stage_id, plus every Meta entry
//   - Status: error when Meta["error"] is present
//
// Spans are ended immediately; events mark points in time, not durations.
//
// Setup:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	emitter := emit.NewOTelEmitter(tp)
type OTelEmitter struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter over the given provider. Spans
// come from the provider's "featureflow" tracer, and Flush flushes this
// provider, not the global one.
func NewOTelEmitter(provider trace.TracerProvider) *OTelEmitter {
	return &OTelEmitter{
		provider: provider,
		tracer:   provider.Tracer("featureflow"),
	}
}

// Emit creates and ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	o.setAttributes(span, event)

	if err, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, err)
		span.RecordError(fmt.Errorf("%s", err))
	}
}

// Flush forces export of buffered spans from the emitter's provider.
// Call before shutdown; respects ctx deadlines. A provider without flush
// support (e.g. the noop provider) is a no-op.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := o.provider.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) setAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("featureflow.run_id", event.RunID),
		attribute.Int("featureflow.step", event.Step),
		attribute.String("featureflow.stage_id", event.StageID),
	)

	for key, value := range event.Meta {
		attrKey := "featureflow." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
