// Package analysis provides the batch transcript analyzer behind the legacy
// transcription endpoints. It extracts meeting-style insights (topics, action
// items, participants, sentiment, summary) from free text via an LLM, with
// graceful degradation when the model response cannot be parsed or the call
// fails.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orato-ai/orato/pkg/provider/llm"
)

const analyzePromptTemplate = `Analyze the following meeting transcript and provide insights:

Transcript: "%s"

Please provide:
1. Key topics discussed
2. Action items or decisions made
3. Important participants mentioned
4. Overall sentiment
5. Brief summary

Format your response as JSON with the following structure:
{
    "topics": ["topic1", "topic2", ...],
    "actionItems": ["item1", "item2", ...],
    "participants": ["person1", "person2", ...],
    "sentiment": "positive/negative/neutral",
    "summary": "brief summary of the meeting"
}`

const summarizePromptTemplate = `Please provide a concise summary of this meeting transcript:

"%s"

Focus on:
- Main discussion points
- Key decisions made
- Next steps or action items

Keep the summary under 200 words.`

// summaryTruncateLen caps how much raw model output is reused as a summary
// when the structured parse fails.
const summaryTruncateLen = 200

const defaultTimeout = 20 * time.Second

// Result is the structured insight extracted from one transcript.
type Result struct {
	Topics       []string `json:"topics"`
	ActionItems  []string `json:"actionItems"`
	Participants []string `json:"participants"`
	Sentiment    string   `json:"sentiment"`
	Summary      string   `json:"summary"`

	// RawAnalysis carries the unstructured model output when JSON parsing
	// failed. Empty on a clean parse.
	RawAnalysis string `json:"rawAnalysis,omitempty"`
}

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithTimeout bounds each model call. Default: 20s.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// Analyzer runs meeting-style analysis over transcripts. It is safe for
// concurrent use and never returns an error: upstream failures degrade to
// neutral placeholder results.
type Analyzer struct {
	provider llm.Provider
	timeout  time.Duration
}

// New returns an [Analyzer] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		timeout:  defaultTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze extracts structured insights from text. When the model response is
// not valid JSON the raw output is preserved in RawAnalysis with a truncated
// summary; when the call fails a neutral placeholder result is returned.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	resp, err := a.complete(ctx, fmt.Sprintf(analyzePromptTemplate, text))
	if err != nil {
		slog.Warn("transcript analysis failed", "error", err)
		return Result{
			Topics:       []string{},
			ActionItems:  []string{},
			Participants: []string{},
			Sentiment:    "neutral",
			Summary:      "Analysis unavailable",
		}
	}

	var res Result
	if err := json.Unmarshal([]byte(stripMarkdown(resp)), &res); err != nil {
		return Result{
			Topics:       []string{},
			ActionItems:  []string{},
			Participants: []string{},
			Sentiment:    "neutral",
			Summary:      truncate(resp, summaryTruncateLen),
			RawAnalysis:  resp,
		}
	}
	if res.Topics == nil {
		res.Topics = []string{}
	}
	if res.ActionItems == nil {
		res.ActionItems = []string{}
	}
	if res.Participants == nil {
		res.Participants = []string{}
	}
	return res
}

// Summarize produces a free-text summary of the transcript. On failure it
// returns a placeholder string rather than an error.
func (a *Analyzer) Summarize(ctx context.Context, text string) string {
	resp, err := a.complete(ctx, fmt.Sprintf(summarizePromptTemplate, text))
	if err != nil {
		slog.Warn("transcript summarization failed", "error", err)
		return "Summary unavailable"
	}
	return strings.TrimSpace(resp)
}

func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	if a.provider == nil {
		return "", fmt.Errorf("analysis: no provider configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.provider.Complete(callCtx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("analysis: complete: %w", err)
	}
	return resp.Content, nil
}

// truncate shortens s to max characters, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// stripMarkdown removes optional markdown code fences around JSON output.
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
