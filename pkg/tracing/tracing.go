// Package tracing holds thin helpers over the global OpenTelemetry tracer.
// Without an installed TracerProvider the spans are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "weathercast"

// StartSpan starts a span on the package tracer with optional attributes.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, spanName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError marks the span failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

const (
	AttrModel    = attribute.Key("weathercast.model")
	AttrLocation = attribute.Key("weathercast.location")
	AttrSource   = attribute.Key("weathercast.source")
	AttrTarget   = attribute.Key("weathercast.target")
	AttrDays     = attribute.Key("weathercast.days")
	AttrRows     = attribute.Key("weathercast.rows")
	AttrSteps    = attribute.Key("weathercast.steps")
	AttrCacheHit = attribute.Key("weathercast.cache_hit")
)
