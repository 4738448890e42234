package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"recipescheduler/internal/queue"
	"recipescheduler/internal/types"
)

// Metrics records dispatch telemetry. Implementations must not block the
// dispatch path on failure.
type Metrics interface {
	RecordOutcome(ctx context.Context, kind types.OutcomeKind)
	RecordPushLatency(ctx context.Context, d time.Duration)
	// RecordLag is how late a job was handled relative to its fire time.
	RecordLag(ctx context.Context, lag time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordOutcome(context.Context, types.OutcomeKind) {}
func (NoopMetrics) RecordPushLatency(context.Context, time.Duration) {}
func (NoopMetrics) RecordLag(context.Context, time.Duration)         {}
func (NoopMetrics) RecordForwarded(context.Context, string, int)     {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits reminder metrics to CloudWatch:
//
//   - ReminderOutcome: Dims {Outcome}, Count
//   - PushLatency: Milliseconds
//   - ReminderLag: Milliseconds
//   - RelayForwarded: Dims {Queue}, Count
//
// Failed puts are logged and dropped.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.DefaultMetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordOutcome(ctx context.Context, kind types.OutcomeKind) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReminderOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{{
			Name:  aws.String(types.DimOutcome),
			Value: aws.String(string(kind)),
		}},
	})
}

func (m *CloudWatchMetrics) RecordPushLatency(ctx context.Context, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPushLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchMetrics) RecordLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReminderLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// RecordForwarded implements queue.RelayRecorder.
func (m *CloudWatchMetrics) RecordForwarded(ctx context.Context, queueName string, n int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRelayForwarded),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{{
			Name:  aws.String(types.DimQueue),
			Value: aws.String(queueName),
		}},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to put metric",
			"metric", aws.ToString(datum.MetricName),
			"error", err,
		)
	}
}

var (
	_ Metrics             = (*CloudWatchMetrics)(nil)
	_ Metrics             = NoopMetrics{}
	_ queue.RelayRecorder = (*CloudWatchMetrics)(nil)
	_ queue.RelayRecorder = NoopMetrics{}
)
