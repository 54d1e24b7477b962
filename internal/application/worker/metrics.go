package worker

import (
	"context"
	"time"

	"documine/internal/domain/valueobject"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "documine/worker"

// schedulerMetrics tracks job lifecycle counters.
type schedulerMetrics struct {
	claimed   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	reaped    metric.Int64Counter
}

func newSchedulerMetrics() *schedulerMetrics {
	meter := otel.Meter(meterName)

	claimed, _ := meter.Int64Counter("documine.jobs.claimed",
		metric.WithDescription("Jobs claimed by workers"))
	completed, _ := meter.Int64Counter("documine.jobs.completed",
		metric.WithDescription("Jobs completed successfully"))
	failed, _ := meter.Int64Counter("documine.jobs.failed",
		metric.WithDescription("Jobs terminally failed"))
	retried, _ := meter.Int64Counter("documine.jobs.retried",
		metric.WithDescription("Jobs re-enqueued for automatic retry"))
	reaped, _ := meter.Int64Counter("documine.jobs.reaped",
		metric.WithDescription("Stale jobs force-failed by the watchdog"))

	return &schedulerMetrics{
		claimed:   claimed,
		completed: completed,
		failed:    failed,
		retried:   retried,
		reaped:    reaped,
	}
}

func (m *schedulerMetrics) addClaimed(ctx context.Context) {
	m.claimed.Add(ctx, 1)
}

func (m *schedulerMetrics) addCompleted(ctx context.Context) {
	m.completed.Add(ctx, 1)
}

func (m *schedulerMetrics) addFailed(ctx context.Context, category string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *schedulerMetrics) addRetried(ctx context.Context) {
	m.retried.Add(ctx, 1)
}

func (m *schedulerMetrics) addReaped(ctx context.Context, count int) {
	m.reaped.Add(ctx, int64(count))
}

// pipelineMetrics tracks per-stage durations.
type pipelineMetrics struct {
	stageDuration metric.Float64Histogram
}

func newPipelineMetrics() *pipelineMetrics {
	meter := otel.Meter(meterName)

	stageDuration, _ := meter.Float64Histogram("documine.pipeline.stage.duration",
		metric.WithDescription("Wall-clock duration of pipeline stages"),
		metric.WithUnit("s"))

	return &pipelineMetrics{stageDuration: stageDuration}
}

func (m *pipelineMetrics) recordStageDuration(ctx context.Context, stage valueobject.JobStage, d time.Duration) {
	m.stageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage.String())))
}
