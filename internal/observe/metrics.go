// Package observe provides the OpenTelemetry metrics recorded by cadence.
//
// Instruments are created through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so the health server can
// expose them on /metrics. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cadence metrics.
const meterName = "github.com/nadzzz/cadence"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// BuildDuration tracks markup generation latency.
	BuildDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// Builds counts rendered responses. Use with attributes:
	//   attribute.String("profile", ...), attribute.String("emotion", ...)
	Builds metric.Int64Counter

	// Fallbacks counts builds that returned plain text. Use with attribute:
	//   attribute.String("stage", ...)
	Fallbacks metric.Int64Counter

	// ValidationWarnings counts advisory warnings reported by the validator.
	ValidationWarnings metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds. Markup generation is
// sub-millisecond; synthesis runs into seconds.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BuildDuration, err = m.Float64Histogram("cadence.build.duration",
		metric.WithDescription("Latency of SSML generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("cadence.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Builds, err = m.Int64Counter("cadence.builds",
		metric.WithDescription("Total rendered responses by profile and emotion."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("cadence.fallbacks",
		metric.WithDescription("Total builds that fell back to plain text, by failing stage."),
	); err != nil {
		return nil, err
	}
	if met.ValidationWarnings, err = m.Int64Counter("cadence.validation.warnings",
		metric.WithDescription("Total advisory warnings reported by the validator."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance backed by the global
// meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBuild records one rendered response.
func (m *Metrics) RecordBuild(ctx context.Context, profile, emotion string, seconds float64) {
	m.BuildDuration.Record(ctx, seconds)
	m.Builds.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("profile", profile),
			attribute.String("emotion", emotion),
		),
	)
}

// RecordFallback records a build that returned plain text.
func (m *Metrics) RecordFallback(ctx context.Context, stage string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordValidation records the warnings of one validation report.
func (m *Metrics) RecordValidation(ctx context.Context, warnings int) {
	if warnings > 0 {
		m.ValidationWarnings.Add(ctx, int64(warnings))
	}
}
