/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics defines Prometheus metrics for the database gateway.
//
// All metrics are registered with a package-local registry rather than
// controller-runtime's shared one, since this process reconciles no
// Kubernetes resources (see DESIGN.md's dropped-dependency note).
//
// Metric naming follows Prometheus conventions:
//   - dbgateway_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the package-local Prometheus registry every metric below
// is registered against; cmd/dbgateway exposes it on the metrics
// endpoint via promhttp.HandlerFor(metrics.Registry, ...).
var Registry = prometheus.NewRegistry()

var (
	// ToolCallsTotal counts tool invocations by tool name and outcome
	// ("ok", "parse", "privilege", "ACL", "tool/operation mismatch",
	// "engine" — matching the Gate/adapter failure-reason vocabulary).
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbgateway_tool_calls_total",
			Help: "Total tool invocations by tool name and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// GateDenialsTotal counts statements the Gate rejected, by the
	// rejecting check's reason.
	GateDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbgateway_gate_denials_total",
			Help: "Total statements denied by the Gate, by reason.",
		},
		[]string{"reason"},
	)

	// QueryDurationSeconds is a histogram of ExecuteQuery latency by
	// operation (SELECT/INSERT/UPDATE/DELETE).
	QueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbgateway_query_duration_seconds",
			Help:    "Duration of executed statements in seconds, by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// RowsAffectedTotal sums rows affected by non-query statements, by
	// operation.
	RowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbgateway_rows_affected_total",
			Help: "Total rows affected by INSERT/UPDATE/DELETE statements.",
		},
		[]string{"op"},
	)

	// OpenTransactions is the number of sessions currently holding an
	// explicit (begin'd but not yet committed/rolled back) transaction.
	OpenTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbgateway_open_transactions",
			Help: "Number of sessions currently holding an explicit transaction.",
		},
	)
)

func init() {
	Registry.MustRegister(
		ToolCallsTotal,
		GateDenialsTotal,
		QueryDurationSeconds,
		RowsAffectedTotal,
		OpenTransactions,
	)
}

// RecordToolCall records one tool invocation's outcome.
func RecordToolCall(tool, outcome string) {
	ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordGateDenial records one Gate rejection.
func RecordGateDenial(reason string) {
	GateDenialsTotal.WithLabelValues(reason).Inc()
}

// RecordQuery records one executed statement's duration and, for
// non-query statements, the rows it affected.
func RecordQuery(op string, duration time.Duration, isQuery bool, affected int64) {
	QueryDurationSeconds.WithLabelValues(op).Observe(duration.Seconds())
	if !isQuery {
		RowsAffectedTotal.WithLabelValues(op).Add(float64(affected))
	}
}
