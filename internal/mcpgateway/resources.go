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

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// resourceSchema exposes the same view get_schema returns as a
// subscribable MCP resource, for clients that prefer resource reads
// over a tool round-trip. Additive beyond spec.md's tool surface;
// grounded on internal/controlplane/mcpserver/resources.go's
// const-URI + registerResources + buildJSONResourceResult pattern.
const resourceSchema = "dbgateway://schema"

func (g *Gateway) registerResources() {
	g.server.AddResource(&mcp.Resource{
		URI:         resourceSchema,
		Name:        "schema",
		Description: "The same schema/top-level-object view get_schema returns, as a read-only resource.",
		MIMEType:    "text/plain",
	}, g.handleSchemaResource)
}

func (g *Gateway) handleSchemaResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	result, _, _ := g.handleGetSchema(ctx, nil, emptyInput{})
	text := ""
	if len(result.Content) > 0 {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			text = tc.Text
		}
	}
	uri := resourceSchema
	if req != nil && req.Params != nil && req.Params.URI != "" {
		uri = req.Params.URI
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}
