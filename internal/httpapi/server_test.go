package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/orato-ai/orato/internal/analysis"
	"github.com/orato-ai/orato/internal/coach"
	"github.com/orato-ai/orato/internal/observe"
	"github.com/orato-ai/orato/internal/session"
	"github.com/orato-ai/orato/internal/store"
	"github.com/orato-ai/orato/pkg/provider/llm"
	"github.com/orato-ai/orato/pkg/provider/llm/mock"
)

const feedbackJSON = `{
	"observations": ["Good pace", "Steady volume", "Few fillers"],
	"improvements": ["Vary your tone"],
	"strengths": ["Clear delivery"],
	"overallScore": 8,
	"quickTip": "Pause before key points",
	"progressNotes": "Session #1 - solid baseline"
}`

// newTestServer wires a server over in-memory subsystems with an isolated
// metrics provider.
func newTestServer(t *testing.T, provider llm.Provider) *Server {
	t.Helper()

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	return New(Deps{
		Registry: session.NewRegistry(session.RegistryConfig{}),
		Coach:    coach.New(provider),
		Analyzer: analysis.New(provider),
		Store:    store.NewMemStore(),
		Metrics:  metrics,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

// createSession creates a session over the API and returns its ID.
func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, body := doJSON(t, h, "POST", "/api/voice/session", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", rec.Code)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("create session returned no session_id: %v", body)
	}
	return id
}

func pcmChunk(samples ...int16) string {
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()

	rec, body := doJSON(t, h, "POST", "/api/voice/session", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["message"] != "Voice analysis session created" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: feedbackJSON},
	}
	srv := newTestServer(t, provider)
	h := srv.Handler()

	id := createSession(t, h)

	rec, body := doJSON(t, h, "POST", "/api/voice/session/"+id+"/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	if body["message"] != "Recording started" {
		t.Errorf("start message = %v", body["message"])
	}
	if body["is_recording"] != true {
		t.Errorf("start is_recording = %v, want true", body["is_recording"])
	}

	rec, body = doJSON(t, h, "POST", "/api/voice/session/"+id+"/audio", map[string]any{
		"audio_data": pcmChunk(3277, -3277, 3277, -3277),
		"text_chunk": "today I want to walk through the quarterly numbers",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("audio status = %d: %v", rec.Code, body)
	}
	if body["audio_processed"] != true {
		t.Errorf("audio_processed = %v", body["audio_processed"])
	}
	if body["transcript_length"].(float64) != 9 {
		t.Errorf("transcript_length = %v, want 9", body["transcript_length"])
	}
	stats, ok := body["live_stats"].(map[string]any)
	if !ok {
		t.Fatalf("live_stats missing: %v", body)
	}
	if stats["volume"].(float64) <= 0 {
		t.Errorf("volume = %v, want > 0", stats["volume"])
	}

	rec, body = doJSON(t, h, "POST", "/api/voice/session/"+id+"/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if body["is_recording"] != false {
		t.Errorf("stop is_recording = %v, want false", body["is_recording"])
	}
	rawAnalysis, ok := body["analysis"].(map[string]any)
	if !ok {
		t.Fatalf("stop returned no analysis: %v", body)
	}
	if rawAnalysis["overallScore"].(float64) != 8 {
		t.Errorf("overallScore = %v, want 8", rawAnalysis["overallScore"])
	}

	rec, body = doJSON(t, h, "GET", "/api/voice/session/"+id+"/analysis", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis status = %d", rec.Code)
	}
	if body["session_count"].(float64) != 1 {
		t.Errorf("session_count = %v, want 1", body["session_count"])
	}
}

func TestAudioChunk_UnknownSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()

	rec, body := doJSON(t, h, "POST", "/api/voice/session/nope/audio", map[string]any{
		"text_chunk": "hello",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["error"] != "Session not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAudioChunk_NotRecording(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	id := createSession(t, h)

	rec, body := doJSON(t, h, "POST", "/api/voice/session/"+id+"/audio", map[string]any{
		"text_chunk": "hello there",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "Session not recording" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAudioChunk_BadBase64ContinuesTextOnly(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	id := createSession(t, h)
	doJSON(t, h, "POST", "/api/voice/session/"+id+"/start", nil)

	rec, body := doJSON(t, h, "POST", "/api/voice/session/"+id+"/audio", map[string]any{
		"audio_data": "!!!not-base64!!!",
		"text_chunk": "hello there friends",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", rec.Code, body)
	}
	if body["audio_processed"] != false {
		t.Errorf("audio_processed = %v, want false", body["audio_processed"])
	}
	if body["transcript_length"].(float64) != 3 {
		t.Errorf("transcript_length = %v, want 3", body["transcript_length"])
	}
}

func TestSessionStats(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	id := createSession(t, h)

	rec, body := doJSON(t, h, "GET", "/api/voice/session/"+id+"/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["is_recording"] != false {
		t.Errorf("is_recording = %v, want false", body["is_recording"])
	}
	if _, ok := body["live_stats"].(map[string]any); !ok {
		t.Errorf("live_stats missing: %v", body)
	}
	if body["transcript_length"].(float64) != 0 {
		t.Errorf("transcript_length = %v, want 0", body["transcript_length"])
	}
}

func TestSessionAnalysis_Empty(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	id := createSession(t, h)

	rec, body := doJSON(t, h, "GET", "/api/voice/session/"+id+"/analysis", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["analysis"] != nil {
		t.Errorf("analysis = %v, want null", body["analysis"])
	}
	if body["message"] != "No analysis available yet. Record some speech first!" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestDeleteSession_Idempotent(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	id := createSession(t, h)

	rec, _ := doJSON(t, h, "DELETE", "/api/voice/session/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doJSON(t, h, "DELETE", "/api/voice/session/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second delete status = %d, want 200", rec.Code)
	}

	rec, _ = doJSON(t, h, "GET", "/api/voice/session/"+id+"/stats", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("stats after delete = %d, want 404", rec.Code)
	}
}

// activeSessionsValue collects the active-sessions gauge from reader.
func activeSessionsValue(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "orato.active_sessions" {
				continue
			}
			gauge, ok := met.Data.(metricdata.Gauge[int64])
			if !ok {
				t.Fatalf("orato.active_sessions is not a gauge: %T", met.Data)
			}
			if len(gauge.DataPoints) == 0 {
				t.Fatal("orato.active_sessions has no data points")
			}
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatal("orato.active_sessions not found")
	return 0
}

func TestActiveSessionsGauge_ReflectsSweep(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	now := time.Now()
	registry := session.NewRegistry(session.RegistryConfig{
		TTL: time.Minute,
		Now: func() time.Time { return now },
	})
	srv := New(Deps{Registry: registry, Metrics: metrics})
	h := srv.Handler()

	createSession(t, h)
	if got := activeSessionsValue(t, reader); got != 1 {
		t.Fatalf("gauge after create = %d, want 1", got)
	}

	// Janitor eviction bypasses the delete handler; the gauge must still drop.
	now = now.Add(2 * time.Minute)
	if evicted := registry.Sweep(); evicted != 1 {
		t.Fatalf("Sweep evicted %d sessions, want 1", evicted)
	}
	if got := activeSessionsValue(t, reader); got != 0 {
		t.Errorf("gauge after sweep = %d, want 0", got)
	}
}

func TestActiveSessionsGauge_ReflectsDelete(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	registry := session.NewRegistry(session.RegistryConfig{})
	srv := New(Deps{Registry: registry, Metrics: metrics})
	h := srv.Handler()

	id := createSession(t, h)
	createSession(t, h)
	if got := activeSessionsValue(t, reader); got != 2 {
		t.Fatalf("gauge after creates = %d, want 2", got)
	}

	doJSON(t, h, "DELETE", "/api/voice/session/"+id, nil)
	if got := activeSessionsValue(t, reader); got != 1 {
		t.Errorf("gauge after delete = %d, want 1", got)
	}
}

func TestStopSession_UnavailableModelStillResponds(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteErr: errors.New("model offline")}
	srv := newTestServer(t, provider)
	h := srv.Handler()
	id := createSession(t, h)
	doJSON(t, h, "POST", "/api/voice/session/"+id+"/start", nil)
	doJSON(t, h, "POST", "/api/voice/session/"+id+"/audio", map[string]any{
		"text_chunk": "a longer practice transcript with enough words to reach the model tier",
	})

	rec, body := doJSON(t, h, "POST", "/api/voice/session/"+id+"/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if _, ok := body["analysis"].(map[string]any); !ok {
		t.Fatalf("expected a fallback analysis record: %v", body)
	}
}

func TestConnectionTest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()
	createSession(t, h)

	rec, body := doJSON(t, h, "GET", "/api/test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["message"] != "Backend connected successfully!" {
		t.Errorf("message = %v", body["message"])
	}
	if body["active_sessions"].(float64) != 1 {
		t.Errorf("active_sessions = %v, want 1", body["active_sessions"])
	}
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestCORS_UnlistedOriginGetsNoAllowHeader(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &mock.Provider{})
	h := srv.Handler()

	req := httptest.NewRequest("OPTIONS", "/api/voice/session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,PUT,POST,DELETE,OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
}
