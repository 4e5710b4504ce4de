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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/marcus-qen/dbgateway/internal/acl"
	"github.com/marcus-qen/dbgateway/internal/dbadapter"
	"github.com/marcus-qen/dbgateway/internal/gate"
	"github.com/marcus-qen/dbgateway/internal/metrics"
	"github.com/marcus-qen/dbgateway/internal/sqlclass"
	"github.com/marcus-qen/dbgateway/internal/telemetry"
)

// denialReason reports a Gate denial's reason tag, or "" when the
// statement was not denied — the shape EndGateCheckSpan expects.
func denialReason(d *gate.Denial) string {
	if d == nil {
		return ""
	}
	return string(d.Reason)
}

// hashSQL renders a statement to a short hex digest for logging, so
// that Debug-level query logs never carry literal values (SPEC_FULL.md
// §10: "query execution at Debug (statement hash, not full text, to
// avoid leaking literal values into logs)").
func hashSQL(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])[:16]
}

// executionToolDescriptions gives the fine-grained tools' fixed
// one-line descriptions, keyed by the lowercase tool name
// (original_source's execution_tools.py names tools action.lower()).
var executionToolDescriptions = map[acl.Privilege]string{
	acl.Select: "Run a single read-only SELECT statement against the connected database.",
	acl.Insert: "Run a single INSERT statement against the connected database.",
	acl.Update: "Run a single UPDATE statement against the connected database.",
	acl.Delete: "Run a single DELETE statement against the connected database.",
}

type sqlInput struct {
	SQL string `json:"sql" jsonschema:"the single SQL statement to run"`
}

// registerExecutionTools registers either one tool per privileged
// operation (fine-grained, the default) or one generic "execute" tool
// (SingleToolMode), per spec.md §4.6 point 2.
func (g *Gateway) registerExecutionTools() {
	if g.cfg.SingleToolMode {
		mcp.AddTool(g.server, &mcp.Tool{
			Name:        "execute",
			Description: "Run a single SQL statement (SELECT, INSERT, UPDATE, or DELETE) against the connected database.",
		}, g.handleExecute(nil))
		return
	}

	for _, priv := range g.privileges.HeldPrivileges() {
		if !g.toolACL.Permits(priv) {
			continue
		}
		priv := priv
		name := strings.ToLower(string(priv))
		mcp.AddTool(g.server, &mcp.Tool{
			Name:        name,
			Description: executionToolDescriptions[priv],
		}, g.handleExecute(&priv))
	}
}

// handleExecute builds the tool handler for one advertised operation
// (nil in single-tool mode, where only Gate's privilege/ACL checks
// run). Grounded on original_source's execute_sql_by_action: classify,
// gate-check, run, format — with every recoverable failure turned into
// a text response rather than a Go error (spec.md §4.6).
func (g *Gateway) handleExecute(advertisedOp *acl.Privilege) func(context.Context, *mcp.CallToolRequest, sqlInput) (*mcp.CallToolResult, any, error) {
	toolName := "execute"
	if advertisedOp != nil {
		toolName = strings.ToLower(string(*advertisedOp))
	}
	return func(ctx context.Context, _ *mcp.CallToolRequest, input sqlInput) (*mcp.CallToolResult, any, error) {
		requestID := uuid.NewString()
		log := g.logger.With(zap.String("request_id", requestID), zap.String("sql_hash", hashSQL(input.SQL)))

		outcome := "ok"
		ctx, toolSpan := telemetry.StartToolCallSpan(ctx, toolName, requestID)
		defer func() { telemetry.EndToolCallSpan(toolSpan, outcome) }()

		classification, err := sqlclass.Classify(input.SQL)
		if err != nil {
			log.Warn("statement failed to parse", zap.Error(err))
			metrics.RecordToolCall(toolName, "parse")
			outcome = "parse"
			return textToolResult(fmt.Sprintf("parse: %s", err)), nil, nil
		}
		log = log.With(zap.String("op", string(classification.Op)))

		_, gateSpan := telemetry.StartGateCheckSpan(ctx, string(classification.Op))
		denial := g.gate.Check(classification, advertisedOp)
		telemetry.EndGateCheckSpan(gateSpan, denial != nil, denialReason(denial))
		if denial != nil {
			log.Warn("statement denied", zap.String("reason", string(denial.Reason)))
			metrics.RecordGateDenial(string(denial.Reason))
			metrics.RecordToolCall(toolName, string(denial.Reason))
			outcome = string(denial.Reason)
			return textToolResult(denial.Error()), nil, nil
		}

		start := time.Now()
		_, querySpan := telemetry.StartQuerySpan(ctx, string(classification.Op))
		result, affected, isQuery, err := g.adapter.ExecuteQuery(ctx, input.SQL)
		if err != nil {
			telemetry.EndQuerySpan(querySpan, 0)
			log.Warn("engine error executing statement", zap.Error(err))
			metrics.RecordToolCall(toolName, "engine")
			outcome = "engine"
			return textToolResult(fmt.Sprintf("engine: %s", err)), nil, nil
		}
		rowCount := affected
		if isQuery {
			rowCount = int64(len(result.Rows))
		}
		telemetry.EndQuerySpan(querySpan, rowCount)
		metrics.RecordQuery(string(classification.Op), time.Since(start), isQuery, affected)
		metrics.RecordToolCall(toolName, "ok")
		log.Debug("statement executed", zap.Int64("rows_affected", affected), zap.Bool("is_query", isQuery))
		if !isQuery {
			return textToolResult(fmt.Sprintf("%d rows affected.", affected)), nil, nil
		}
		return jsonToolResult(resultRows(result))
	}
}

// resultRows turns a QueryResult into a slice of column->value maps,
// the JSON shape an LLM caller reads naturally (original_source's
// format_response over list(rows), translated from Python dict rows).
func resultRows(r *dbadapter.QueryResult) []map[string]string {
	rows := make([]map[string]string, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]string, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		rows[i] = m
	}
	return rows
}

type emptyInput struct{}

// registerTransactionTools registers begin/commit/rollback, each
// reporting the fixed "Done" success text original_source's
// mcp_constants.default_res defines, or the error text on failure.
func (g *Gateway) registerTransactionTools() {
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        "begin",
		Description: "Begin an explicit transaction on the connected database.",
	}, g.handleTransaction("begin", func(ctx context.Context) error { return g.adapter.Begin(ctx) }))

	mcp.AddTool(g.server, &mcp.Tool{
		Name:        "commit",
		Description: "Commit the current explicit transaction.",
	}, g.handleTransaction("commit", func(ctx context.Context) error { return g.adapter.Commit(ctx) }))

	mcp.AddTool(g.server, &mcp.Tool{
		Name:        "rollback",
		Description: "Roll back the current explicit transaction.",
	}, g.handleTransaction("rollback", func(ctx context.Context) error { return g.adapter.Rollback(ctx) }))
}

func (g *Gateway) handleTransaction(name string, fn func(context.Context) error) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
		requestID := uuid.NewString()
		log := g.logger.With(zap.String("request_id", requestID), zap.String("tool", name))

		outcome := "ok"
		ctx, span := telemetry.StartToolCallSpan(ctx, name, requestID)
		defer func() { telemetry.EndToolCallSpan(span, outcome) }()

		if err := fn(ctx); err != nil {
			log.Warn("transaction tool failed", zap.Error(err))
			metrics.RecordToolCall(name, "engine")
			outcome = "engine"
			return textToolResult(fmt.Sprintf("engine: %s", err)), nil, nil
		}
		switch name {
		case "begin":
			metrics.OpenTransactions.Set(1)
		case "commit", "rollback":
			metrics.OpenTransactions.Set(0)
		}
		metrics.RecordToolCall(name, "ok")
		log.Info("transaction tool succeeded")
		return textToolResult("Done"), nil, nil
	}
}

type getObjectInput struct {
	ObjectType string `json:"object_type" jsonschema:"object kind: TABLE or VIEW"`
	ObjectName string `json:"object_name" jsonschema:"object name"`
}

// registerContextTools registers get_schema always, plus get_object
// when the schema is large enough to cross SchemaThreshold (spec.md
// §4.6 point 1).
func (g *Gateway) registerContextTools() {
	desc := "Return the full schema (every visible table/view as CREATE TABLE statements)."
	if g.largeSchema {
		desc = "Return the list of visible top-level tables/views. Use get_object for column detail."
	}
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        "get_schema",
		Description: desc,
	}, g.handleGetSchema)

	if g.largeSchema {
		mcp.AddTool(g.server, &mcp.Tool{
			Name:        "get_object",
			Description: "Return one table or view's column/key/index detail as a CREATE TABLE statement.",
		}, g.handleGetObject)
	}
}

func (g *Gateway) handleGetSchema(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	if g.largeSchema {
		_, span := telemetry.StartSchemaSpan(ctx, "get_schema:top_level", "")
		defer span.End()
		objs, err := g.adapter.GetTopLevelObjects(ctx)
		if err != nil {
			return textToolResult(fmt.Sprintf("engine: %s", err)), nil, nil
		}
		return textToolResult(g.projector.TopLevelObjects(objs)), nil, nil
	}
	_, span := telemetry.StartSchemaSpan(ctx, "get_schema:full", "")
	defer span.End()
	schema, err := g.adapter.GetDatabaseSchema(ctx)
	if err != nil {
		return textToolResult(fmt.Sprintf("engine: %s", err)), nil, nil
	}
	return textToolResult(g.projector.FullSchema(schema)), nil, nil
}

func (g *Gateway) handleGetObject(ctx context.Context, _ *mcp.CallToolRequest, input getObjectInput) (*mcp.CallToolResult, any, error) {
	_, span := telemetry.StartSchemaSpan(ctx, "get_object", input.ObjectName)
	defer span.End()

	objType := acl.ObjectType(strings.ToUpper(strings.TrimSpace(input.ObjectType)))
	if objType != acl.ObjectTable && objType != acl.ObjectView {
		return textToolResult(fmt.Sprintf("parse: unsupported object_type %q, expected TABLE or VIEW", input.ObjectType)), nil, nil
	}

	info, err := g.adapter.GetTableDetails(ctx, input.ObjectName)
	if err != nil {
		return textToolResult(fmt.Sprintf("engine: %s", err)), nil, nil
	}

	out, err := g.projector.GetObject(objType, input.ObjectName, *info)
	if err != nil {
		return textToolResult(err.Error()), nil, nil
	}
	return textToolResult(out), nil, nil
}

const maxDistinctValues = 50
const semanticSearchLimit = 5

type columnValueInput struct {
	Targets map[string]string `json:"targets" jsonschema:"map of 'table.column' to the target value to find near matches for"`
}

// registerSemanticSearchTool registers search_relative_column_values,
// grounded on original_source's column_value.py but implemented with
// stdlib-only trigram Jaccard similarity rather than an embedding model
// — see DESIGN.md's Open Question decision: no sentence-embedding
// library exists anywhere in the example pack.
func (g *Gateway) registerSemanticSearchTool() {
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        "search_relative_column_values",
		Description: "For each 'table.column': target value, find the closest existing distinct values actually stored in that column.",
	}, g.handleSemanticSearch)
}

func (g *Gateway) handleSemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input columnValueInput) (*mcp.CallToolResult, any, error) {
	ctx, span := telemetry.StartSchemaSpan(ctx, "search_relative_column_values", "")
	defer span.End()

	result := make(map[string]any, len(input.Targets))

	keys := make([]string, 0, len(input.Targets))
	for k := range input.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, fullColumn := range keys {
		target := input.Targets[fullColumn]
		table, column, ok := splitTableColumn(fullColumn)
		if !ok {
			result[fullColumn] = "Invalid column format. Expected 'table.column'."
			continue
		}

		sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s LIMIT %d", column, table, maxDistinctValues)
		classification, err := sqlclass.Classify(sql)
		if err != nil {
			result[column] = fmt.Sprintf("parse: %s", err)
			continue
		}
		selectOp := acl.Select
		if denial := g.gate.Check(classification, &selectOp); denial != nil {
			result[column] = denial.Error()
			continue
		}

		qr, _, _, err := g.adapter.ExecuteQuery(ctx, sql)
		if err != nil {
			result[column] = fmt.Sprintf("engine: %s", err)
			continue
		}

		var values []string
		for _, row := range qr.Rows {
			if len(row) > 0 {
				values = append(values, row[0])
			}
		}
		if len(values) == 0 {
			result[column] = []string{}
			continue
		}
		result[column] = topSimilar(target, values, semanticSearchLimit)
	}

	return jsonToolResult(result)
}

func splitTableColumn(s string) (table, column string, ok bool) {
	i := strings.LastIndex(s, ".")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// topSimilar ranks values by trigram Jaccard similarity to target,
// descending, returning at most limit entries.
func topSimilar(target string, values []string, limit int) []string {
	type scored struct {
		value string
		score float64
	}
	targetGrams := trigrams(target)
	scores := make([]scored, len(values))
	for i, v := range values {
		scores[i] = scored{value: v, score: jaccard(targetGrams, trigrams(v))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > limit {
		scores = scores[:limit]
	}
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.value
	}
	return out
}

// trigrams returns the set of 3-character substrings of a lowercased
// s, padded at both ends so short strings still produce grams.
func trigrams(s string) map[string]bool {
	s = "  " + strings.ToLower(s) + "  "
	grams := make(map[string]bool)
	runes := []rune(s)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for g := range a {
		if b[g] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return textToolResult(string(data)), nil, nil
}

func textToolResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
