package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names, one per instrumented package.
const (
	TracerIAM         = "policygate/services/iam"
	TracerAggregation = "policygate/services/aggregation"
	TracerUpstream    = "policygate/upstream"
)

// Common attribute keys.
const (
	AttrClientID    = "oauth.client_id"
	AttrGrantType   = "oauth.grant_type"
	AttrPrincipalID = "principal.id"
	AttrRole        = "principal.role"
	AttrJoinHop     = "join.hop"
	AttrSource      = "upstream.source"
	AttrStatusCode  = "http.response.status_code"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Grant",
//	    attribute.String(telemetry.AttrClientID, req.ClientID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named business event to span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// InjectHeaders propagates the trace context of ctx onto an outgoing request.
func InjectHeaders(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}
