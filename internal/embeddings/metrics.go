package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/stratalabs/ragd/internal/embeddings"

// Metrics holds embedding-related metrics.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	duration   metric.Float64Histogram
	batchSize  metric.Int64Histogram
	errors     metric.Int64Counter
	fallbacks  metric.Int64Counter
	zeroVector metric.Int64Counter
}

// NewMetrics creates a Metrics instance. A nil logger disables warnings.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"ragd.embedding.generation_duration_seconds",
		metric.WithDescription("Duration of embedding generation in seconds, labeled by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = m.meter.Int64Histogram(
		"ragd.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding batch request"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		m.logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"ragd.embedding.errors_total",
		metric.WithDescription("Total embedding generation errors by model and operation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.fallbacks, err = m.meter.Int64Counter(
		"ragd.embedding.provider_fallbacks_total",
		metric.WithDescription("Times the gateway fell through to an alternate provider"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		m.logger.Warn("failed to create fallback counter", zap.Error(err))
	}

	m.zeroVector, err = m.meter.Int64Counter(
		"ragd.embedding.zero_vector_substitutions_total",
		metric.WithDescription("Chunks that received a zero vector after all providers failed"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		m.logger.Warn("failed to create zero vector counter", zap.Error(err))
	}
}

// RecordGeneration records one embedding generation call.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, elapsed time.Duration, batch int, genErr error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batch), attrs)
	}
	if genErr != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// RecordFallback records a fall-through from one provider to the next.
func (m *Metrics) RecordFallback(ctx context.Context, from, to string) {
	if m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}

// RecordZeroVector records a zero-vector substitution.
func (m *Metrics) RecordZeroVector(ctx context.Context, count int) {
	if m.zeroVector != nil && count > 0 {
		m.zeroVector.Add(ctx, int64(count))
	}
}
