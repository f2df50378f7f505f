package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/orato-ai/orato/internal/session"
)

// liveStreamInterval is how often the websocket pushes a stats frame.
const liveStreamInterval = 500 * time.Millisecond

// liveFrame is one websocket message on the live stats stream.
type liveFrame struct {
	SessionID   string            `json:"session_id"`
	LiveStats   session.LiveStats `json:"live_stats"`
	IsRecording bool              `json:"is_recording"`
	WordCount   int               `json:"word_count"`
}

// handleLiveStream upgrades to a websocket and pushes live stats frames at a
// fixed cadence until the client disconnects or the session is deleted.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.allowedOrigins),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

	ticker := time.NewTicker(liveStreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
			// Stop streaming once the session is swept or deleted.
			if _, err := s.registry.Get(sess.ID); err != nil {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}

			stats, recording := sess.Stats()
			_, wordCount, _ := sess.Transcript()

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, liveFrame{
				SessionID:   sess.ID,
				LiveStats:   stats,
				IsRecording: recording,
				WordCount:   wordCount,
			})
			cancel()
			if err != nil {
				var closeErr websocket.CloseError
				if !errors.As(err, &closeErr) {
					conn.Close(websocket.StatusNormalClosure, "")
				}
				return
			}
		}
	}
}

// originPatterns converts full origins ("http://localhost:3000") into the
// host patterns the websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		patterns = append(patterns, o)
	}
	return patterns
}
