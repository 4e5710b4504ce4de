/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	observer := hv.WithLabelValues(labels...)
	if c, ok := observer.(prometheus.Metric); ok {
		if err := c.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordToolCall(t *testing.T) {
	RecordToolCall("select", "ok")
	RecordToolCall("select", "ok")

	val := getCounterValue(ToolCallsTotal, "select", "ok")
	if val < 2 {
		t.Errorf("ToolCallsTotal = %f, want >= 2", val)
	}
}

func TestRecordGateDenial(t *testing.T) {
	RecordGateDenial("privilege")

	val := getCounterValue(GateDenialsTotal, "privilege")
	if val < 1 {
		t.Errorf("GateDenialsTotal = %f, want >= 1", val)
	}
}

func TestRecordQueryRowProducing(t *testing.T) {
	RecordQuery("SELECT", 25*time.Millisecond, true, 0)

	count := getHistogramCount(QueryDurationSeconds, "SELECT")
	if count < 1 {
		t.Errorf("QueryDurationSeconds sample count = %d, want >= 1", count)
	}
	if val := getCounterValue(RowsAffectedTotal, "SELECT"); val != 0 {
		t.Errorf("RowsAffectedTotal for a row-producing statement = %f, want 0", val)
	}
}

func TestRecordQueryAffectedRows(t *testing.T) {
	RecordQuery("UPDATE", 10*time.Millisecond, false, 7)
	RecordQuery("UPDATE", 10*time.Millisecond, false, 3)

	val := getCounterValue(RowsAffectedTotal, "UPDATE")
	if val < 10 {
		t.Errorf("RowsAffectedTotal = %f, want >= 10", val)
	}
}

func TestOpenTransactionsGauge(t *testing.T) {
	OpenTransactions.Set(0)

	OpenTransactions.Inc()
	OpenTransactions.Inc()
	if val := getGaugeValue(OpenTransactions); val != 2 {
		t.Errorf("OpenTransactions = %f, want 2", val)
	}

	OpenTransactions.Dec()
	if val := getGaugeValue(OpenTransactions); val != 1 {
		t.Errorf("OpenTransactions after Dec = %f, want 1", val)
	}
}
