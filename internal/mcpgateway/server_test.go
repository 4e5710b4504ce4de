/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package mcpgateway

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/marcus-qen/dbgateway/internal/acl"
	"github.com/marcus-qen/dbgateway/internal/dbadapter"
	"github.com/marcus-qen/dbgateway/internal/gate"
	"github.com/marcus-qen/dbgateway/internal/schemaproj"
)

func newTestGateway(t *testing.T, adapter *fakeAdapter, cfg Config) *Gateway {
	t.Helper()

	privileges, err := adapter.GetUserPrivileges(context.Background())
	if err != nil {
		t.Fatalf("get user privileges: %v", err)
	}
	objectACL := acl.NewObjectACL()
	toolACL := acl.NewToolACL()
	g := gate.New(privileges, objectACL, toolACL)
	projector := schemaproj.New(objectACL, privileges, true)

	schema, err := adapter.GetDatabaseSchema(context.Background())
	if err != nil {
		t.Fatalf("get database schema: %v", err)
	}

	return New(adapter, g, projector, privileges, toolACL, schema, cfg, zap.NewNop())
}

func connectTestClient(t *testing.T, gw *Gateway) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.server.Run(runCtx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Logf("mcp server run exited with: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Log("timed out waiting for mcp server shutdown")
		}
	})

	return session
}

func firstText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("empty tool result: %#v", result)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %#v", result.Content[0])
	}
	return tc.Text
}

func TestFineGrainedToolsRegistered(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{TransactionTools: true})
	session := connectTestClient(t, gw)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	expected := []string{"begin", "commit", "get_schema", "insert", "rollback", "select"}
	if len(names) != len(expected) {
		t.Fatalf("got tools %v, want %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("got tools %v, want %v", names, expected)
		}
	}
}

func TestSingleToolModeRegistersExecuteOnly(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{SingleToolMode: true})
	session := connectTestClient(t, gw)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	found := false
	for _, tool := range result.Tools {
		if tool.Name == "execute" {
			found = true
		}
		if tool.Name == "select" || tool.Name == "insert" {
			t.Fatalf("single-tool mode should not register fine-grained tool %q", tool.Name)
		}
	}
	if !found {
		t.Fatal("expected an \"execute\" tool to be registered")
	}
}

func TestSelectToolReturnsRows(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{rows: [][]string{{"1", "alice"}, {"2", "bob"}}}, Config{})
	session := connectTestClient(t, gw)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "select",
		Arguments: map[string]any{"sql": "SELECT id, name FROM users"},
	})
	if err != nil {
		t.Fatalf("call select: %v", err)
	}
	text := firstText(t, result)
	if text == "" {
		t.Fatal("expected non-empty JSON rows")
	}
}

func TestSelectToolDeniesMismatchedOperation(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{})
	session := connectTestClient(t, gw)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "select",
		Arguments: map[string]any{"sql": "INSERT INTO users (name) VALUES ('eve')"},
	})
	if err != nil {
		t.Fatalf("call select: %v", err)
	}
	text := firstText(t, result)
	if !containsAll(text, "tool/operation mismatch") {
		t.Fatalf("expected a tool/operation mismatch denial, got %q", text)
	}
}

func TestSelectToolSurfacesEngineError(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{err: errors.New("connection reset")}, Config{})
	session := connectTestClient(t, gw)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "select",
		Arguments: map[string]any{"sql": "SELECT id, name FROM users"},
	})
	if err != nil {
		t.Fatalf("call select: %v", err)
	}
	text := firstText(t, result)
	if !containsAll(text, "engine:", "connection reset") {
		t.Fatalf("expected an engine: error text, got %q", text)
	}
}

func TestTransactionToolsReportDone(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{TransactionTools: true})
	session := connectTestClient(t, gw)

	for _, name := range []string{"begin", "commit"} {
		result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name})
		if err != nil {
			t.Fatalf("call %s: %v", name, err)
		}
		if text := firstText(t, result); text != "Done" {
			t.Fatalf("%s: got %q, want \"Done\"", name, text)
		}
	}
}

func TestGetSchemaSmallSchemaReturnsFullSchema(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{})
	session := connectTestClient(t, gw)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "get_schema"})
	if err != nil {
		t.Fatalf("call get_schema: %v", err)
	}
	text := firstText(t, result)
	if !containsAll(text, "CREATE TABLE", "users") {
		t.Fatalf("expected a CREATE TABLE rendering of users, got %q", text)
	}
}

func TestGetSchemaLargeSchemaListsTopLevelObjects(t *testing.T) {
	gw := newTestGateway(t, &fakeAdapter{}, Config{SchemaThreshold: 1})
	session := connectTestClient(t, gw)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	foundGetObject := false
	for _, tool := range result.Tools {
		if tool.Name == "get_object" {
			foundGetObject = true
		}
	}
	if !foundGetObject {
		t.Fatal("expected get_object to be registered once the schema crosses SchemaThreshold")
	}
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

var _ dbadapter.Adapter = (*fakeAdapter)(nil)
