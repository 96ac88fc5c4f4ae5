// Package observe provides the OpenTelemetry metric instruments used by the
// detection loop, the ambient pad and the metronome.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) reads the
// global meter provider, which is a no-op until [InitProvider] installs the
// SDK provider with its Prometheus exporter. Tests should use [NewMetrics]
// with their own [metric.MeterProvider].
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all chordpad metrics.
const meterName = "github.com/0xlemi/chordpad"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// DetectionTicks counts detection loop iterations.
	DetectionTicks metric.Int64Counter

	// DetectedNotes counts ticks that produced a note. Use with attribute:
	//   attribute.String("note", ...)
	DetectedNotes metric.Int64Counter

	// DetectionMisses counts ticks without a fundamental.
	DetectionMisses metric.Int64Counter

	// EstimateDuration tracks the time spent in one pitch estimation.
	EstimateDuration metric.Float64Histogram

	// CaptureSessions tracks open microphone sessions (0 or 1).
	CaptureSessions metric.Int64UpDownCounter

	// PadVoices tracks sounding ambient pad oscillators.
	PadVoices metric.Int64UpDownCounter

	// MetronomeClicks counts metronome clicks played.
	MetronomeClicks metric.Int64Counter

	// HTTPRequests counts API requests. Use with attributes:
	//   attribute.String("route", ...), attribute.Int("status", ...)
	HTTPRequests metric.Int64Counter
}

// estimateBuckets are histogram boundaries in seconds sized for frames of a
// few thousand samples.
var estimateBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DetectionTicks, err = m.Int64Counter("chordpad.detection.ticks",
		metric.WithDescription("Pitch detection loop iterations."),
	); err != nil {
		return nil, err
	}
	if met.DetectedNotes, err = m.Int64Counter("chordpad.detection.notes",
		metric.WithDescription("Detection ticks that produced a note, by note name."),
	); err != nil {
		return nil, err
	}
	if met.DetectionMisses, err = m.Int64Counter("chordpad.detection.misses",
		metric.WithDescription("Detection ticks without a fundamental."),
	); err != nil {
		return nil, err
	}
	if met.EstimateDuration, err = m.Float64Histogram("chordpad.estimate.duration",
		metric.WithDescription("Latency of one pitch estimation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(estimateBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureSessions, err = m.Int64UpDownCounter("chordpad.capture.sessions",
		metric.WithDescription("Open microphone capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.PadVoices, err = m.Int64UpDownCounter("chordpad.pad.voices",
		metric.WithDescription("Sounding ambient pad oscillators."),
	); err != nil {
		return nil, err
	}
	if met.MetronomeClicks, err = m.Int64Counter("chordpad.metronome.clicks",
		metric.WithDescription("Metronome clicks played."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequests, err = m.Int64Counter("chordpad.http.requests",
		metric.WithDescription("API requests by route and status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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
