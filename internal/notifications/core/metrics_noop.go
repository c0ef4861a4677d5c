package core

import (
	"context"
	"time"
)

// NoopMetrics discards everything. Used when METRICS_BACKEND=none and in
// tests that do not assert on telemetry.
type NoopMetrics struct{}

var _ Recorder = NoopMetrics{}

func (NoopMetrics) RecordDelivery(context.Context, Channel, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, Channel, time.Duration) {}
func (NoopMetrics) RecordSubscribers(context.Context, int) {}
func (NoopMetrics) RecordRequest(string, string, string, time.Duration) {}
