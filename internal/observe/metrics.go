// Package observe wires carecompanion into OpenTelemetry: metric
// instruments, tracing helpers, request-scoped logging, and the HTTP
// middleware that ties them together.
//
// Production code records through [DefaultMetrics], which binds to the
// global meter provider installed by [InitProvider]. Tests build their own
// instance with [NewMetrics] and a private provider.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/carecompanion"

// Metrics holds the service's instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	LLMDuration   metric.Float64Histogram
	TTSDuration   metric.Float64Histogram // whole reply, all segments
	ReplyDuration metric.Float64Histogram // request to persisted reply

	// ProviderRequests is labelled provider, kind (llm|tts) and status
	// (ok|error). ProviderErrors carries provider and kind only.
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// Replies is labelled with the chosen expression and animation.
	Replies         metric.Int64Counter
	MouthCues       metric.Int64Histogram
	SessionsCreated metric.Int64Counter

	// HTTPRequestDuration is labelled method, route and status by [Middleware].
	HTTPRequestDuration metric.Float64Histogram
}

// Hosted LLM and TTS round trips, in seconds.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

// From a one-word reply to several paragraphs.
var cueBuckets = []float64{0, 10, 50, 100, 250, 500, 1000, 2500}

// NewMetrics creates every instrument on mp's carecompanion meter.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var errs []error

	seconds := func(name, desc string, buckets ...float64) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
		if len(buckets) > 0 {
			opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
		}
		h, err := m.Float64Histogram(name, opts...)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	met := &Metrics{
		LLMDuration:         seconds("carecompanion.llm.duration", "Latency of LLM completions.", latencyBuckets...),
		TTSDuration:         seconds("carecompanion.tts.duration", "Latency of speech synthesis for a reply.", latencyBuckets...),
		ReplyDuration:       seconds("carecompanion.reply.duration", "Latency of a complete chat turn.", latencyBuckets...),
		HTTPRequestDuration: seconds("carecompanion.http.request.duration", "HTTP request latency by route."),
		ProviderRequests:    counter("carecompanion.provider.requests", "Provider API requests."),
		ProviderErrors:      counter("carecompanion.provider.errors", "Provider API failures."),
		Replies:             counter("carecompanion.replies", "Assistant replies by expression and animation."),
		SessionsCreated:     counter("carecompanion.sessions.created", "Chat sessions created."),
	}
	var err error
	met.MouthCues, err = m.Int64Histogram("carecompanion.reply.mouth_cues",
		metric.WithDescription("Mouth cues derived per reply."),
		metric.WithExplicitBucketBoundaries(cueBuckets...),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics lazily binds a [Metrics] to the global meter provider.
// Call it after [InitProvider] so the instruments reach the exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic(err)
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordReply counts one assistant reply and its mouth cue total.
func (m *Metrics) RecordReply(ctx context.Context, expression, animation string, cues int) {
	m.Replies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("expression", expression),
		attribute.String("animation", animation),
	))
	m.MouthCues.Record(ctx, int64(cues))
}
