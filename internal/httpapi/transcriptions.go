package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/orato-ai/orato/internal/store"
)

// transcriptionRequest is the write body shared by create and update.
type transcriptionRequest struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Analyze  bool    `json:"analyze"`
}

func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription storage unavailable")
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := s.store.List(r.Context(), store.ListOptions{Page: page, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transcriptions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result.Items,
		"pagination": map[string]any{
			"page":  result.Page,
			"limit": result.Limit,
			"total": result.Total,
			"pages": result.Pages,
		},
	})
}

func (s *Server) handleCreateTranscription(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription storage unavailable")
		return
	}

	var req transcriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	rec := &store.Transcription{
		Text:     req.Text,
		Duration: req.Duration,
		Language: req.Language,
	}
	if req.Analyze && s.analyzer != nil {
		start := time.Now()
		result := s.analyzer.Analyze(r.Context(), req.Text)
		s.metrics.AnalysisDuration.Record(r.Context(), time.Since(start).Seconds())
		rec.Analysis = &result
	}

	if err := s.store.Create(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transcription")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    rec,
	})
}

func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription storage unavailable")
		return
	}

	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load transcription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rec,
	})
}

func (s *Server) handleUpdateTranscription(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription storage unavailable")
		return
	}

	var req transcriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	rec := &store.Transcription{
		ID:       r.PathValue("id"),
		Text:     req.Text,
		Duration: req.Duration,
		Language: req.Language,
	}
	if req.Analyze && s.analyzer != nil {
		result := s.analyzer.Analyze(r.Context(), req.Text)
		rec.Analysis = &result
	}

	if err := s.store.Update(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update transcription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rec,
	})
}

func (s *Server) handleDeleteTranscription(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription storage unavailable")
		return
	}

	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete transcription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Transcription deleted successfully",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis service unavailable")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	start := time.Now()
	result := s.analyzer.Analyze(r.Context(), req.Text)
	s.metrics.AnalysisDuration.Record(r.Context(), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": result,
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis service unavailable")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	summary := s.analyzer.Summarize(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

func (s *Server) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Backend connected successfully!",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": s.registry.Len(),
	})
}
