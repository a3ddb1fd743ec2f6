// Package otel provides OpenTelemetry instrumentation utilities for the repository server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for business context used across the application.
const (
	AttrOperationID   = attribute.Key("clone.operation_id")
	AttrRepositoryURL = attribute.Key("clone.repository_url")
	AttrCloneState    = attribute.Key("clone.state")
	AttrRepository    = attribute.Key("repository.name")
	AttrGitOperation  = attribute.Key("git.operation")
	AttrResultCount   = attribute.Key("result.count")
	AttrUpToDate      = attribute.Key("git.up_to_date")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic, the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
