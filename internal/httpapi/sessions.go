package httpapi

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/orato-ai/orato/internal/coach"
	"github.com/orato-ai/orato/internal/events"
	"github.com/orato-ai/orato/internal/session"
	"github.com/orato-ai/orato/pkg/audio"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.registry.Create()
	s.publishEvent(r, events.TypeSessionCreated, sess.ID, nil)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"session_id": sess.ID,
		"message":    "Voice analysis session created",
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Start()
	s.publishEvent(r, events.TypeSessionStarted, sess.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Recording started",
		"is_recording": true,
	})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Stop()

	transcript, wordCount, _ := sess.Transcript()
	stats, _ := sess.Stats()

	var analysisBody any
	if s.coach != nil {
		start := time.Now()
		rec, source := s.coach.Generate(r.Context(), coach.Input{
			SessionID:    sess.ID,
			Transcript:   transcript,
			Stats:        stats,
			SessionCount: sess.HistoryLen(),
		})
		s.metrics.RecordFeedback(r.Context(), string(source), time.Since(start).Seconds())
		sess.AppendRecord(rec)
		analysisBody = rec

		s.publishEvent(r, events.TypeFeedbackGenerated, sess.ID, map[string]any{
			"source": string(source),
			"score":  rec.OverallScore,
		})
	}

	s.publishEvent(r, events.TypeSessionStopped, sess.ID, map[string]any{
		"word_count": wordCount,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Recording stopped",
		"is_recording": false,
		"analysis":     analysisBody,
	})
}

func (s *Server) handleAudioChunk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		AudioData string `json:"audio_data"`
		TextChunk string `json:"text_chunk"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	// A bad audio payload never fails the chunk: the text portion still
	// carries the coaching signal.
	var samples []float64
	audioProcessed := false
	if req.AudioData != "" {
		raw, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			slog.Warn("audio chunk decode failed, continuing text-only",
				"session_id", sess.ID, "error", err)
		} else if len(raw) >= 2 {
			samples = audio.DecodePCM16LE(raw)
			audioProcessed = true
		}
	}

	start := time.Now()
	outcome, stats, err := sess.Ingest(session.Observation{
		Samples: samples,
		Text:    req.TextChunk,
	})
	if err != nil {
		if errors.Is(err, session.ErrNotRecording) {
			writeError(w, http.StatusBadRequest, "Session not recording")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to process audio chunk")
		return
	}
	s.metrics.RecordChunk(r.Context(), outcome.String(), time.Since(start).Seconds())

	_, wordCount, _ := sess.Transcript()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"live_stats":        stats,
		"transcript_length": wordCount,
		"audio_processed":   audioProcessed,
	})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	stats, recording := sess.Stats()
	_, wordCount, _ := sess.Transcript()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"live_stats":        stats,
		"is_recording":      recording,
		"transcript_length": wordCount,
	})
}

func (s *Server) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	transcript, wordCount, elapsed := sess.Transcript()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"transcript": transcript,
		"word_count": wordCount,
		"duration":   elapsed.Seconds(),
	})
}

func (s *Server) handleSessionAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	rec, found := sess.LatestRecord()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"message":  "No analysis available yet. Record some speech first!",
			"analysis": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"analysis":      rec,
		"session_count": sess.HistoryLen(),
	})
}

// handleDeleteSession is idempotent: deleting an unknown session succeeds.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.registry.Delete(id) {
		s.publishEvent(r, events.TypeSessionDeleted, id, nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session deleted",
	})
}

// lookupSession resolves the {id} path parameter, writing a 404 on miss.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

// publishEvent emits a session event, logging instead of failing the request
// when the broker is unreachable.
func (s *Server) publishEvent(r *http.Request, eventType, sessionID string, data map[string]any) {
	if err := s.publisher.Publish(r.Context(), eventType, sessionID, data); err != nil {
		slog.Warn("session event publish failed", "type", eventType, "session_id", sessionID, "error", err)
	}
}
