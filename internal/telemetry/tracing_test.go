/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory span exporter for test assertions.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestInitTraceProviderNoopWhenEmpty(t *testing.T) {
	shutdown, err := InitTraceProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestStartToolCallSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartToolCallSpan(ctx, "select", "req-1")
	EndToolCallSpan(span, "ok")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "mcp.tool_call" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "mcp.tool_call")
	}

	foundTool := false
	foundOutcome := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "dbgateway.tool" && a.Value.AsString() == "select" {
			foundTool = true
		}
		if string(a.Key) == "dbgateway.outcome" && a.Value.AsString() == "ok" {
			foundOutcome = true
		}
	}
	if !foundTool {
		t.Error("missing dbgateway.tool attribute")
	}
	if !foundOutcome {
		t.Error("missing dbgateway.outcome attribute")
	}
}

func TestEndGateCheckSpanDenied(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartGateCheckSpan(ctx, "SELECT")
	EndGateCheckSpan(span, true, "privilege")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	foundDenied := false
	foundReason := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "dbgateway.denied" && a.Value.AsBool() {
			foundDenied = true
		}
		if string(a.Key) == "dbgateway.deny_reason" && a.Value.AsString() == "privilege" {
			foundReason = true
		}
	}
	if !foundDenied {
		t.Error("missing dbgateway.denied attribute")
	}
	if !foundReason {
		t.Error("missing dbgateway.deny_reason attribute")
	}
}

func TestNestedToolAndQuerySpans(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	ctx, toolSpan := StartToolCallSpan(ctx, "select", "req-2")
	_, querySpan := StartQuerySpan(ctx, "SELECT")
	EndQuerySpan(querySpan, 3)
	EndToolCallSpan(toolSpan, "ok")

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	queryStub := spans[0] // query span ends first
	toolStub := spans[1]

	if queryStub.Parent.TraceID() != toolStub.SpanContext.TraceID() {
		t.Error("query span should share trace ID with tool span")
	}
	if !queryStub.Parent.SpanID().IsValid() {
		t.Error("query span should have a valid parent span ID")
	}
}

func TestStartSchemaSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartSchemaSpan(ctx, "get_object", "users")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "schema.project" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "schema.project")
	}
}
