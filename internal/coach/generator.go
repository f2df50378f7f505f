// Package coach turns a completed recording into a structured coaching
// record. Generation runs through three tiers: a live model response, a
// deterministic stats-based fallback when the response cannot be parsed, and
// a fixed apologetic record when the model call itself fails. Each tier is
// independently reachable; the caller always receives a valid record.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/orato-ai/orato/internal/feedback"
	"github.com/orato-ai/orato/internal/session"
	"github.com/orato-ai/orato/pkg/provider/llm"
)

// Source identifies which tier produced a feedback record.
type Source string

const (
	// SourceModel means the model returned a parseable coaching record.
	SourceModel Source = "model"

	// SourceStats means the model responded but its output was unparseable,
	// so the record was synthesized from the numeric stats.
	SourceStats Source = "stats"

	// SourceShort means the transcript was too short to analyse and the
	// fixed short-session record was returned without a model call.
	SourceShort Source = "short"

	// SourceUnavailable means the model call failed and the fixed apology
	// record was returned.
	SourceUnavailable Source = "unavailable"
)

// minTranscriptTokens is the minimum token count worth sending to the model.
const minTranscriptTokens = 3

const (
	defaultTimeout     = 20 * time.Second
	defaultTemperature = 0.7
)

// Input carries everything the generator needs for one session.
type Input struct {
	SessionID    string
	Transcript   string
	Stats        session.LiveStats
	SessionCount int
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithTimeout bounds each model call. Default: 20s.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature for feedback completions.
// Non-positive values keep the default of 0.7.
func WithTemperature(temp float64) Option {
	return func(g *Generator) {
		if temp > 0 {
			g.temperature = temp
		}
	}
}

// WithMaxTokens caps the completion length. Zero uses the provider default.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		g.maxTokens = n
	}
}

// WithJournal appends every generated record to the given journal.
func WithJournal(j *feedback.Journal) Option {
	return func(g *Generator) {
		g.journal = j
	}
}

// Generator produces coaching records from session transcripts and stats.
// It is safe for concurrent use. A nil provider skips the model tier and
// always yields the stats fallback.
type Generator struct {
	provider    llm.Provider
	timeout     time.Duration
	temperature float64
	maxTokens   int
	journal     *feedback.Journal
}

// New returns a [Generator] backed by the given provider. Wrap the provider
// in a resilience.LLMFallback to get multi-backend failover.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:    provider,
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate produces the coaching record for one completed recording. It never
// returns an error: upstream failures degrade to lower tiers. The returned
// [Source] reports which tier produced the record.
func (g *Generator) Generate(ctx context.Context, in Input) (feedback.Record, Source) {
	rec, source := g.generate(ctx, in)

	if g.journal != nil {
		if err := g.journal.Append(in.SessionID, string(source), rec); err != nil {
			slog.Warn("feedback journal append failed",
				"session_id", in.SessionID, "error", err)
		}
	}
	return rec, source
}

func (g *Generator) generate(ctx context.Context, in Input) (feedback.Record, Source) {
	tokens := strings.Fields(strings.TrimSpace(in.Transcript))
	if len(tokens) < minTranscriptTokens {
		return shortSessionRecord(in.SessionCount), SourceShort
	}

	if g.provider == nil {
		return statsFallbackRecord(len(tokens), in.Stats, in.SessionCount), SourceStats
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Complete(callCtx, llm.CompletionRequest{
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(in.Transcript, in.Stats, in.SessionCount)},
		},
	})
	if err != nil {
		slog.Warn("feedback model call failed, returning unavailable record",
			"session_id", in.SessionID, "error", err)
		return unavailableRecord(in.SessionCount), SourceUnavailable
	}

	rec, err := parseRecord(resp.Content)
	if err != nil {
		slog.Warn("feedback response unparseable, synthesizing from stats",
			"session_id", in.SessionID, "error", err)
		return statsFallbackRecord(len(tokens), in.Stats, in.SessionCount), SourceStats
	}
	return rec, SourceModel
}

// parseRecord unmarshals the model output into a [feedback.Record], stripping
// optional markdown code fences first. Records missing required content are
// rejected so the caller can fall back to the stats tier.
func parseRecord(content string) (feedback.Record, error) {
	cleaned := stripMarkdown(content)

	var rec feedback.Record
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return feedback.Record{}, err
	}
	if !rec.Valid() {
		return feedback.Record{}, errIncompleteRecord
	}
	return rec, nil
}

var errIncompleteRecord = errors.New("coach: model response missing required fields")

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
