// Package core holds the observability shared by the notification channels
// and the HTTP chassis: delivery outcomes per channel, dispatch latency,
// live subscriber counts and request metrics, with CloudWatch, Prometheus
// and no-op backends.
package core

import (
	"context"
	"time"
)

// Channel identifies a notification channel in metrics.
type Channel string

const (
	ChannelSMS       Channel = "sms"
	ChannelBroadcast Channel = "broadcast"
)

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess    MetricResult = "success"
	MetricFailed     MetricResult = "failed"
	MetricSkipped    MetricResult = "skipped"
	MetricSuppressed MetricResult = "suppressed"
)

// Metric names and dimensions shared by the backends.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryAttemptLatency"
	MetricSubscribers     = "BroadcastSubscribers"
	MetricAPIRequestCount = "APIRequestCount"
	MetricAPILatency      = "APILatency"

	DimChannel  = "Channel"
	DimResult   = "Result"
	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
)

// NotificationMetrics records channel telemetry. Implementations never return
// errors; a failed metric write is logged and dropped.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, channel Channel, result MetricResult)
	RecordLatency(ctx context.Context, channel Channel, duration time.Duration)
	RecordSubscribers(ctx context.Context, count int)
}

// Recorder is implemented by every backend: notification metrics plus HTTP
// request metrics for the API chassis.
type Recorder interface {
	NotificationMetrics
	RecordRequest(method, endpoint, status string, duration time.Duration)
}
