package coach

import (
	"fmt"

	"github.com/orato-ai/orato/internal/session"
)

// promptTemplate demands structured JSON so the response maps directly onto
// [feedback.Record]. Models that wrap the JSON in code fences are tolerated
// by the parser.
const promptTemplate = `As an expert speech coach, analyze this speaking performance:

TRANSCRIPT: "%s"

LIVE STATISTICS:
- Fluency Score: %.1f/100
- Volume Level: %.1f/100
- Articulation: %.1f/100
- Filler Words: %.1f%%
- Speaking Rate: %.1f WPM
- Confidence: %.1f/100
- Clarity: %.1f/100

SESSION COUNT: %d (previous sessions)

Please provide coaching feedback in this EXACT JSON format:
{
    "observations": [
        "Specific observation about tone/delivery",
        "Observation about word choice/clarity",
        "Observation about pacing/flow"
    ],
    "improvements": [
        "Specific actionable tip",
        "Another concrete suggestion"
    ],
    "strengths": [
        "What they did well"
    ],
    "overallScore": 7,
    "quickTip": "One-sentence practical advice",
    "progressNotes": "Comment on improvement from previous sessions (if any)"
}

Be encouraging but honest. Focus on practical, actionable advice.`

// buildPrompt renders the coaching prompt for one completed recording.
func buildPrompt(transcript string, stats session.LiveStats, sessionCount int) string {
	return fmt.Sprintf(promptTemplate,
		transcript,
		stats.Fluency,
		stats.Volume,
		stats.Articulation,
		stats.FillerWords,
		stats.SpeakingRate,
		stats.Confidence,
		stats.Clarity,
		sessionCount,
	)
}
