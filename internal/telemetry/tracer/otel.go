package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies framesync spans.
const InstrumentationName = "github.com/yndnr/framesync-go"

// Attribute keys used on framesync spans.
const (
	AttrNodeID = attribute.Key("framesync.node_id")
	AttrRound  = attribute.Key("framesync.round")
	AttrEvents = attribute.Key("framesync.events")
	AttrResult = attribute.Key("framesync.result")
)

// SetProvider installs tp as the global tracer provider.
func SetProvider(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// Tracer returns the framesync tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a new span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Round returns the round attribute.
func Round(r uint64) attribute.KeyValue {
	return AttrRound.Int64(int64(r))
}

// NodeID returns the node ID attribute.
func NodeID(id string) attribute.KeyValue {
	return AttrNodeID.String(id)
}

// Events returns the event count attribute.
func Events(n int) attribute.KeyValue {
	return AttrEvents.Int(n)
}

// End finishes span, recording err and the phase result when set.
func End(span trace.Span, result string, err error) {
	if result != "" {
		span.SetAttributes(AttrResult.String(result))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
