package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for query cache metrics.
const MeterName = "github.com/ekaya-inc/ekaya-querycache/pkg/services"

// Metric instrument names.
const (
	MetricLookups            = "querycache.lookups"
	MetricHits               = "querycache.hits"
	MetricStores             = "querycache.stores"
	MetricSwept              = "querycache.swept"
	MetricGenerationDuration = "querycache.generation.duration_ms"
)

// Metrics holds the instruments recorded by the cache, sweeper and pipeline.
type Metrics struct {
	lookups            metric.Int64Counter
	hits               metric.Int64Counter
	stores             metric.Int64Counter
	swept              metric.Int64Counter
	generationDuration metric.Int64Histogram
}

// NewMetrics creates instruments on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	m := &Metrics{}
	var err error
	if m.lookups, err = meter.Int64Counter(MetricLookups,
		metric.WithDescription("Cache lookups, by result")); err != nil {
		return nil, err
	}
	if m.hits, err = meter.Int64Counter(MetricHits,
		metric.WithDescription("Cache hits recorded against stored entries")); err != nil {
		return nil, err
	}
	if m.stores, err = meter.Int64Counter(MetricStores,
		metric.WithDescription("Cache entries written")); err != nil {
		return nil, err
	}
	if m.swept, err = meter.Int64Counter(MetricSwept,
		metric.WithDescription("Cache entries removed by cleanup, by kind")); err != nil {
		return nil, err
	}
	if m.generationDuration, err = meter.Int64Histogram(MetricGenerationDuration,
		metric.WithDescription("Time spent generating and executing SQL on cache misses"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// NoopMetrics returns instruments bound to the global provider, which
// discards measurements until one is installed.
func NoopMetrics() *Metrics {
	m, err := NewMetrics(nil)
	if err != nil {
		return &Metrics{}
	}
	return m
}

func (m *Metrics) recordLookup(ctx context.Context, result string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) recordHit(ctx context.Context) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Add(ctx, 1)
}

func (m *Metrics) recordStore(ctx context.Context) {
	if m == nil || m.stores == nil {
		return
	}
	m.stores.Add(ctx, 1)
}

func (m *Metrics) recordSwept(ctx context.Context, kind string, n int64) {
	if m == nil || m.swept == nil || n <= 0 {
		return
	}
	m.swept.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordGeneration(ctx context.Context, ms int64, outcome string) {
	if m == nil || m.generationDuration == nil {
		return
	}
	m.generationDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("outcome", outcome)))
}
