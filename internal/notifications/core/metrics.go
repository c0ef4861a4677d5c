package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits every metric as a single PutMetricData call.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result}
//   - DeliveryAttemptLatency: Dims {Channel}
//   - BroadcastSubscribers: no dims
//   - APIRequestCount / APILatency: Dims {Method, Endpoint, Status}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Recorder = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count with Channel and Result dimensions.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, channel Channel, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims(DimChannel, string(channel), DimResult, string(result)),
	})
}

// RecordLatency emits dispatch latency in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, channel Channel, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: dims(DimChannel, string(channel)),
	})
}

// RecordSubscribers emits the current number of live broadcast subscribers.
func (m *CloudWatchMetrics) RecordSubscribers(ctx context.Context, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricSubscribers),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordRequest emits request count and latency in one call.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	d := dims(DimMethod, method, DimEndpoint, endpoint, DimStatus, status)
	m.put(context.Background(),
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: d,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: d,
		},
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to put metric data",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

// dims builds dimensions from name/value pairs.
func dims(pairs ...string) []cwtypes.Dimension {
	out := make([]cwtypes.Dimension, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, cwtypes.Dimension{
			Name:  aws.String(pairs[i]),
			Value: aws.String(pairs[i+1]),
		})
	}
	return out
}
