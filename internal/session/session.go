// Package session implements the per-recording state of the speech coach: a
// registry of active sessions and the live statistics accumulator that every
// audio/text chunk flows through.
package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/orato-ai/orato/internal/feedback"
)

// ErrNotRecording is returned by [Session.Ingest] when a chunk is submitted
// while the session is not recording.
var ErrNotRecording = errors.New("session: not recording")

// Session is one bounded recording+analysis unit. All methods are safe for
// concurrent use; chunk updates for the same session are serialized by an
// internal mutex.
type Session struct {
	// ID is the opaque identifier assigned at creation.
	ID string

	// CreatedAt is when the session was registered.
	CreatedAt time.Time

	now                func() time.Time
	maxTranscriptWords int

	mu          sync.Mutex
	isRecording bool
	started     bool
	startTime   time.Time
	transcript  []string
	stats       LiveStats
	totalWords  int
	fillerCount int
	history     []feedback.Record
	lastActive  time.Time
}

// newSession constructs a Session. Counters and stats start at zero and are
// never reset afterwards; start only rearms the recording timer.
func newSession(id string, now func() time.Time, maxTranscriptWords int) *Session {
	t := now()
	return &Session{
		ID:                 id,
		CreatedAt:          t,
		now:                now,
		maxTranscriptWords: maxTranscriptWords,
		lastActive:         t,
	}
}

// Start begins recording and rearms the elapsed-time base for the speaking
// rate. Word and filler counters carry over from any previous recording
// within this session.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRecording = true
	s.started = true
	s.startTime = s.now()
	s.lastActive = s.startTime
}

// Stop ends recording. The speaking rate freezes at its last computed value
// because no further text chunks are accepted.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRecording = false
	s.lastActive = s.now()
}

// IsRecording reports whether the session currently accepts chunks.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRecording
}

// Ingest applies one observation to the session. It returns [ErrNotRecording]
// if the session is not recording; in that case no state is mutated.
//
// A failed stats computation never surfaces as an error: the previous snapshot
// is retained, the failure is logged, and the returned outcome is
// [OutcomeFailed].
func (s *Session) Ingest(obs Observation) (Outcome, LiveStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRecording {
		return OutcomeNoData, s.stats, ErrNotRecording
	}
	s.lastActive = s.now()

	if len(obs.Samples) == 0 && strings.TrimSpace(obs.Text) == "" {
		return OutcomeNoData, s.stats, nil
	}

	res, err := accumulate(accumulatorInput{
		prev:        s.stats,
		totalWords:  s.totalWords,
		fillerCount: s.fillerCount,
		obs:         obs,
		elapsed:     s.now().Sub(s.startTime),
		started:     s.started,
	})
	if err != nil {
		slog.Error("session stats update failed, retaining previous snapshot",
			"session_id", s.ID, "error", err)
		return OutcomeFailed, s.stats, nil
	}
	if !res.applied {
		return OutcomeNoData, s.stats, nil
	}

	s.stats = res.stats
	s.totalWords = res.totalWords
	s.fillerCount = res.fillerCount
	if len(res.words) > 0 {
		s.transcript = append(s.transcript, res.words...)
		if s.maxTranscriptWords > 0 && len(s.transcript) > s.maxTranscriptWords {
			// Counters are cumulative and unaffected by trimming.
			s.transcript = s.transcript[len(s.transcript)-s.maxTranscriptWords:]
		}
	}
	return OutcomeApplied, s.stats, nil
}

// Stats returns the current stats snapshot and the recording flag.
func (s *Session) Stats() (LiveStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.isRecording
}

// Transcript returns the full transcript text, its word count, and the time
// elapsed since the current recording started (zero if never started).
func (s *Session) Transcript() (string, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var elapsed time.Duration
	if s.started {
		elapsed = s.now().Sub(s.startTime)
	}
	return strings.Join(s.transcript, " "), len(s.transcript), elapsed
}

// Counters returns the cumulative word and filler counts.
func (s *Session) Counters() (totalWords, fillerCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalWords, s.fillerCount
}

// AppendRecord adds a feedback record to the analysis history.
func (s *Session) AppendRecord(rec feedback.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	s.lastActive = s.now()
}

// LatestRecord returns the most recent feedback record, if any.
func (s *Session) LatestRecord() (feedback.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return feedback.Record{}, false
	}
	return s.history[len(s.history)-1], true
}

// HistoryLen returns how many feedback records the session has accumulated.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// LastActive returns when the session last saw a lifecycle call or chunk.
// Used by the registry janitor for TTL eviction.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
