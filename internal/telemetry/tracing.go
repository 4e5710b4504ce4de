/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the database
// gateway.
//
// Custom span attributes use the `dbgateway.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "dbgateway/mcpgateway"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC exporter.
// If endpoint is empty, tracing is disabled (noop provider is used).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // plaintext gRPC; no TLS is configured
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("dbgateway"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartToolCallSpan creates the parent span for one tool invocation
// (an execution tool or a transaction tool).
func StartToolCallSpan(ctx context.Context, tool, requestID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "mcp.tool_call",
		trace.WithAttributes(
			attribute.String("dbgateway.tool", tool),
			attribute.String("dbgateway.request_id", requestID),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndToolCallSpan enriches the tool span with the dispatch outcome —
// "ok", or one of the Gate's failure-reason tags ("parse", "privilege",
// "ACL", "tool/operation mismatch", "engine").
func EndToolCallSpan(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("dbgateway.outcome", outcome))
	span.End()
}

// StartGateCheckSpan creates a child span around the Gate's three
// ordered checks for a single classified statement.
func StartGateCheckSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gate.check",
		trace.WithAttributes(
			attribute.String("dbgateway.op", op),
		),
	)
}

// EndGateCheckSpan enriches the gate span with the check's verdict.
func EndGateCheckSpan(span trace.Span, denied bool, reason string) {
	span.SetAttributes(attribute.Bool("dbgateway.denied", denied))
	if denied {
		span.SetAttributes(attribute.String("dbgateway.deny_reason", reason))
	}
	span.End()
}

// StartQuerySpan creates a child span around one adapter.ExecuteQuery
// call, following the OTel database semantic convention of naming the
// span after the statement's top-level operation.
func StartQuerySpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "db."+op,
		trace.WithAttributes(
			attribute.String("dbgateway.op", op),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndQuerySpan enriches the query span with the row count produced or
// affected.
func EndQuerySpan(span trace.Span, rowCount int64) {
	span.SetAttributes(attribute.Int64("dbgateway.row_count", rowCount))
	span.End()
}

// StartSchemaSpan creates a span around one schema/object introspection
// call (get_schema, get_object or search_relative_column_values).
func StartSchemaSpan(ctx context.Context, kind, object string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("dbgateway.kind", kind)}
	if object != "" {
		attrs = append(attrs, attribute.String("dbgateway.object", object))
	}
	return Tracer().Start(ctx, "schema.project", trace.WithAttributes(attrs...))
}
