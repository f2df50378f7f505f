// Package httpapi exposes the speech-coaching backend over HTTP: the live
// voice-session API, the legacy transcription CRUD and analysis endpoints,
// and a websocket stream for live stats. Response envelopes match what the
// bundled web client expects.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/orato-ai/orato/internal/analysis"
	"github.com/orato-ai/orato/internal/coach"
	"github.com/orato-ai/orato/internal/events"
	"github.com/orato-ai/orato/internal/health"
	"github.com/orato-ai/orato/internal/observe"
	"github.com/orato-ai/orato/internal/session"
	"github.com/orato-ai/orato/internal/store"
)

// defaultAllowedOrigins covers the local web client.
var defaultAllowedOrigins = []string{"http://localhost:3000"}

// Deps holds the subsystems the server routes requests to. Registry is
// required; the rest may be nil, in which case the matching endpoints either
// degrade (nil Publisher, nil Metrics) or respond 503 (nil Store, nil
// Analyzer).
type Deps struct {
	Registry  *session.Registry
	Coach     *coach.Generator
	Analyzer  *analysis.Analyzer
	Store     store.Store
	Publisher *events.Publisher
	Metrics   *observe.Metrics
	Health    *health.Handler
}

// Option is a functional option for [New].
type Option func(*Server)

// WithAllowedOrigins overrides the CORS origin allowlist.
// Default: http://localhost:3000.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// Server is the HTTP front of the coaching backend.
type Server struct {
	registry  *session.Registry
	coach     *coach.Generator
	analyzer  *analysis.Analyzer
	store     store.Store
	publisher *events.Publisher
	metrics   *observe.Metrics
	health    *health.Handler

	allowedOrigins []string
}

// New wires a server from its dependencies.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		registry:       deps.Registry,
		coach:          deps.Coach,
		analyzer:       deps.Analyzer,
		store:          deps.Store,
		publisher:      deps.Publisher,
		metrics:        deps.Metrics,
		health:         deps.Health,
		allowedOrigins: defaultAllowedOrigins,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.publisher == nil {
		s.publisher = events.New(nil)
	}
	for _, o := range opts {
		o(s)
	}

	// The active-sessions gauge observes the registry directly so that TTL
	// eviction by the janitor is reflected, not just explicit deletes.
	if s.registry != nil {
		if _, err := s.metrics.ObserveActiveSessions(func() int64 {
			return int64(s.registry.Len())
		}); err != nil {
			slog.Warn("active-sessions gauge registration failed", "error", err)
		}
	}
	return s
}

// Handler returns the full route tree wrapped in CORS and observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Live voice sessions.
	mux.HandleFunc("POST /api/voice/session", s.handleCreateSession)
	mux.HandleFunc("POST /api/voice/session/{id}/start", s.handleStartSession)
	mux.HandleFunc("POST /api/voice/session/{id}/stop", s.handleStopSession)
	mux.HandleFunc("POST /api/voice/session/{id}/audio", s.handleAudioChunk)
	mux.HandleFunc("GET /api/voice/session/{id}/stats", s.handleSessionStats)
	mux.HandleFunc("GET /api/voice/session/{id}/transcript", s.handleSessionTranscript)
	mux.HandleFunc("GET /api/voice/session/{id}/analysis", s.handleSessionAnalysis)
	mux.HandleFunc("GET /api/voice/session/{id}/live", s.handleLiveStream)
	mux.HandleFunc("DELETE /api/voice/session/{id}", s.handleDeleteSession)

	// Legacy transcription API.
	mux.HandleFunc("GET /api/transcriptions", s.handleListTranscriptions)
	mux.HandleFunc("POST /api/transcriptions", s.handleCreateTranscription)
	mux.HandleFunc("GET /api/transcriptions/{id}", s.handleGetTranscription)
	mux.HandleFunc("PUT /api/transcriptions/{id}", s.handleUpdateTranscription)
	mux.HandleFunc("DELETE /api/transcriptions/{id}", s.handleDeleteTranscription)

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/summarize", s.handleSummarize)
	mux.HandleFunc("GET /api/test", s.handleConnectionTest)

	if s.health != nil {
		s.health.Register(mux)
	}

	return corsMiddleware(s.allowedOrigins, observe.Middleware(s.metrics)(mux))
}
