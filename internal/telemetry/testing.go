package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder is an enabled Telemetry whose spans and metrics stay in memory.
// Tool dispatch tests read back the tools.<name> spans and the
// orctasks.tools.* instruments through it.
type Recorder struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewRecorder returns a healthy, enabled Recorder.
func NewRecorder() *Recorder {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tel := &Telemetry{
		config:         cfg,
		tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	tel.healthy.Store(true)
	return &Recorder{Telemetry: tel, spans: spans, reader: reader}
}

// Span returns the most recently ended span called name, or nil.
func (r *Recorder) Span(name string) sdktrace.ReadOnlySpan {
	ended := r.spans.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() == name {
			return ended[i]
		}
	}
	return nil
}

// SpanAttr returns attribute key of span name rendered as a string, and
// whether both were found.
func (r *Recorder) SpanAttr(name string, key attribute.Key) (string, bool) {
	span := r.Span(name)
	if span == nil {
		return "", false
	}
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

// Sum adds up the int64 sum (counter or up-down counter) called name over
// every data point carrying all of attrs.
func (r *Recorder) Sum(ctx context.Context, name string, attrs ...attribute.KeyValue) (int64, error) {
	m, err := r.metric(ctx, name)
	if err != nil || m == nil {
		return 0, err
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, nil
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if hasAll(dp.Attributes, attrs) {
			total += dp.Value
		}
	}
	return total, nil
}

// Observations counts the float64 histogram records called name that
// carry all of attrs.
func (r *Recorder) Observations(ctx context.Context, name string, attrs ...attribute.KeyValue) (uint64, error) {
	m, err := r.metric(ctx, name)
	if err != nil || m == nil {
		return 0, err
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, nil
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		if hasAll(dp.Attributes, attrs) {
			n += dp.Count
		}
	}
	return n, nil
}

func (r *Recorder) metric(ctx context.Context, name string) (*metricdata.Metrics, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i], nil
			}
		}
	}
	return nil, nil
}

func hasAll(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, want := range attrs {
		got, ok := set.Value(want.Key)
		if !ok || got != want.Value {
			return false
		}
	}
	return true
}
