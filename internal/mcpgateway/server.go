/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package mcpgateway is the Tool Surface Builder (C6): at startup it
// inspects discovered privileges and schema size, registers the
// context/execution/transaction tool shape spec.md §4.6 describes, and
// serves them over MCP's stdio or SSE transport. Grounded directly on
// internal/controlplane/mcpserver/server.go's mcp.NewServer +
// functional-options + NewSSEHandler wiring.
package mcpgateway

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/marcus-qen/dbgateway/internal/acl"
	"github.com/marcus-qen/dbgateway/internal/dbadapter"
	"github.com/marcus-qen/dbgateway/internal/gate"
	"github.com/marcus-qen/dbgateway/internal/schemaproj"
)

// Version is injected from build metadata, mirroring mcpserver.Version.
var Version = "dev"

// Config is the set of startup decisions SPEC_FULL.md §10's CLI flags
// resolve to before New is called.
type Config struct {
	// SchemaThreshold is the total-column-count cutoff deciding whether
	// get_schema returns the full schema (small) or only top-level
	// object names alongside a get_object tool (large). Default 200.
	SchemaThreshold int
	// SingleToolMode registers one generic "execute" tool instead of
	// one tool per privileged operation (--disable_fine_gran_tool).
	SingleToolMode bool
	// TransactionTools registers begin/commit/rollback
	// (!--disable_trans).
	TransactionTools bool
	// SemanticSearch registers search_relative_column_values.
	SemanticSearch bool
}

// Gateway is the MCP server exposing the gated tool surface over stdio
// or SSE.
type Gateway struct {
	server  *mcp.Server
	handler http.Handler

	adapter    dbadapter.Adapter
	gate       *gate.Gate
	projector  *schemaproj.Projector
	privileges *acl.UserPrivilege
	toolACL    *acl.ToolACL
	cfg        Config
	logger     *zap.Logger

	largeSchema bool
}

// New builds the Gateway, deciding the context-tool shape from
// CountColumns(schema) against cfg.SchemaThreshold, then registering
// every tool spec.md §4.6 names for the privileges/ACLs supplied.
func New(
	adapterImpl dbadapter.Adapter,
	g *gate.Gate,
	projector *schemaproj.Projector,
	privileges *acl.UserPrivilege,
	toolACL *acl.ToolACL,
	schema dbadapter.DatabaseSchema,
	cfg Config,
	logger *zap.Logger,
) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SchemaThreshold <= 0 {
		cfg.SchemaThreshold = 200
	}

	implVersion := Version
	if implVersion == "" {
		implVersion = "dev"
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "dbgateway",
		Version: implVersion,
	}, nil)

	gw := &Gateway{
		server:      srv,
		adapter:     adapterImpl,
		gate:        g,
		projector:   projector,
		privileges:  privileges,
		toolACL:     toolACL,
		cfg:         cfg,
		logger:      logger.Named("mcpgateway"),
		largeSchema: projector.CountColumns(schema) > cfg.SchemaThreshold,
	}

	gw.registerContextTools()
	gw.registerExecutionTools()
	if cfg.TransactionTools {
		gw.registerTransactionTools()
	}
	if cfg.SemanticSearch {
		gw.registerSemanticSearchTool()
	}
	gw.registerResources()

	gw.handler = mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return gw.server
	}, nil)

	return gw
}

// Handler returns the HTTP SSE transport handler, for --transport=sse.
func (g *Gateway) Handler() http.Handler {
	if g == nil {
		return http.NotFoundHandler()
	}
	return g.handler
}

// RunStdio serves the gateway over stdin/stdout, for --transport=stdio
// (the default — an LLM agent's local MCP client speaks to one gateway
// process per connection, no network listener needed). Blocks until
// the client disconnects or ctx is cancelled.
func (g *Gateway) RunStdio(ctx context.Context) error {
	return g.server.Run(ctx, &mcp.StdioTransport{})
}
