// Package metrics emits execution metrics to AWS CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"airvault/internal/types"
)

// Namespace is the CloudWatch namespace all engine metrics publish under.
const Namespace = "AirVault/TopUpEngine"

// Metric and dimension names.
const (
	MetricExecution         = "TopUpExecution"
	MetricExecutionDuration = "TopUpExecutionDuration"

	DimSource  = "Source"
	DimOutcome = "Outcome"
)

// CloudWatchClient abstracts the PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes execution counters and durations. Publish
// failures are logged and swallowed; metrics never fail an execution.
type CloudWatchRecorder struct {
	client CloudWatchClient
	logger *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to Namespace.
func NewCloudWatchRecorder(client CloudWatchClient, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{client: client, logger: logger}
}

// CountExecution emits one TopUpExecution count with Source and Outcome
// dimensions.
func (m *CloudWatchRecorder) CountExecution(ctx context.Context, source types.IntentSource, outcome string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(MetricExecution),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(DimSource), Value: aws.String(string(source))},
				{Name: aws.String(DimOutcome), Value: aws.String(outcome)},
			},
		}},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish execution metric",
			"source", string(source),
			"outcome", outcome,
			"error", err,
		)
	}
}

// ObserveExecutionDuration emits the end-to-end execution duration in
// milliseconds with the Source dimension.
func (m *CloudWatchRecorder) ObserveExecutionDuration(ctx context.Context, source types.IntentSource, d time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(MetricExecutionDuration),
			Value:      aws.Float64(float64(d.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(DimSource), Value: aws.String(string(source))},
			},
		}},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish duration metric",
			"source", string(source),
			"error", err,
		)
	}
}
