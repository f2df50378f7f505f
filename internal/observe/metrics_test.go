package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"orato.chunk.duration", m.ChunkDuration},
		{"orato.feedback.duration", m.FeedbackDuration},
		{"orato.analysis.duration", m.AnalysisDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordChunk(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordChunk(ctx, "applied", 0.01)
	m.RecordChunk(ctx, "applied", 0.02)
	m.RecordChunk(ctx, "failed", 0.01)

	rm := collect(t, reader)
	met := findMetric(rm, "orato.chunks.ingested")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "outcome" && kv.Value.AsString() == "applied" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with outcome=applied not found")
}

func TestRecordFeedback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFeedback(ctx, "model", 1.2)
	m.RecordFeedback(ctx, "stats", 0.001)

	rm := collect(t, reader)
	met := findMetric(rm, "orato.feedback.records")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "source" && kv.Value.AsString() == "model" {
				if dp.Value != 1 {
					t.Errorf("counter value = %d, want 1", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with source=model not found")
}

func TestRecordProviderRequest_ErrorIncrementsBoth(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "ok")
	m.RecordProviderRequest(ctx, "gemini", "error")

	rm := collect(t, reader)

	requests := findMetric(rm, "orato.provider.requests")
	if requests == nil {
		t.Fatal("requests metric not found")
	}
	reqSum, ok := requests.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("requests metric is not a sum")
	}
	var total int64
	for _, dp := range reqSum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("total requests = %d, want 2", total)
	}

	errs := findMetric(rm, "orato.provider.errors")
	if errs == nil {
		t.Fatal("errors metric not found")
	}
	errSum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("errors metric is not a sum")
	}
	if len(errSum.DataPoints) == 0 || errSum.DataPoints[0].Value != 1 {
		t.Errorf("error count = %+v, want 1", errSum.DataPoints)
	}
}

func TestActiveStreamsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveStreams.Add(ctx, 3)
	m.ActiveStreams.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "orato.active_streams")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("gauge value = %d, want 2", got)
	}
}

func TestObserveActiveSessions_FollowsSource(t *testing.T) {
	m, reader := newTestMetrics(t)

	var count int64 = 2
	reg, err := m.ObserveActiveSessions(func() int64 { return count })
	if err != nil {
		t.Fatalf("ObserveActiveSessions: %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	assertSessions := func(want int64) {
		t.Helper()
		rm := collect(t, reader)
		met := findMetric(rm, "orato.active_sessions")
		if met == nil {
			t.Fatal("metric not found")
		}
		gauge, ok := met.Data.(metricdata.Gauge[int64])
		if !ok {
			t.Fatal("metric is not a gauge")
		}
		if len(gauge.DataPoints) == 0 {
			t.Fatal("no data points")
		}
		if got := gauge.DataPoints[0].Value; got != want {
			t.Errorf("gauge value = %d, want %d", got, want)
		}
	}

	assertSessions(2)

	// The gauge tracks the source on every collection, so any removal path
	// in the source is reflected without an explicit decrement.
	count = 0
	assertSessions(0)
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/health"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "orato.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
