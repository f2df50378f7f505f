package coach

import (
	"fmt"
	"math"

	"github.com/orato-ai/orato/internal/feedback"
	"github.com/orato-ai/orato/internal/session"
)

// shortSessionRecord is the fixed record returned when the transcript is too
// short to analyse. No model call is made.
func shortSessionRecord(sessionCount int) feedback.Record {
	return feedback.Record{
		Observations: []string{
			"Very brief speech sample detected",
			"Speaking duration was quite short",
			"Consider recording for a longer period for better analysis",
		},
		Improvements: []string{
			"Try speaking for at least 30 seconds for meaningful analysis",
			"Practice speaking in complete sentences",
		},
		Strengths: []string{
			"Taking the initiative to practice speaking",
		},
		OverallScore:  5,
		QuickTip:      "Record for longer periods to get detailed feedback",
		ProgressNotes: fmt.Sprintf("Session #%d - Brief session completed", sessionCount+1),
	}
}

// statsFallbackRecord deterministically synthesizes a record from the numeric
// stats when the model's response could not be parsed.
func statsFallbackRecord(wordCount int, stats session.LiveStats, sessionCount int) feedback.Record {
	rateObservation := "Speaking rate needs improvement"
	if stats.SpeakingRate > 0 {
		rateObservation = fmt.Sprintf("Speaking rate: %.1f words per minute", stats.SpeakingRate)
	}
	fillerObservation := "Good control of filler words"
	if stats.FillerWords > 0 {
		fillerObservation = fmt.Sprintf("Filler words: %.1f%% of speech", stats.FillerWords)
	}

	paceTip := "Consider varying your speaking pace for emphasis"
	if stats.SpeakingRate < 120 {
		paceTip = "Try to maintain a steady speaking pace"
	}
	fillerTip := "Work on expanding your vocabulary"
	if stats.FillerWords > 3 {
		fillerTip = "Focus on reducing filler words like 'um' and 'uh'"
	}

	articulationStrength := "Good effort in communication"
	if stats.Articulation > 70 {
		articulationStrength = "Clear articulation"
	}
	volumeStrength := "Engaging with the practice"
	if stats.Volume > 30 {
		volumeStrength = "Appropriate volume level"
	}

	quickTip := "Focus on one improvement area at a time"
	if wordCount < 50 {
		quickTip = "Practice speaking for longer periods to build confidence"
	}

	return feedback.Record{
		Observations: []string{
			fmt.Sprintf("Spoke %d words during this session", wordCount),
			rateObservation,
			fillerObservation,
		},
		Improvements:  []string{paceTip, fillerTip},
		Strengths:     []string{articulationStrength, volumeStrength},
		OverallScore:  statsScore(stats),
		QuickTip:      quickTip,
		ProgressNotes: fmt.Sprintf("Session #%d completed - %d words recorded", sessionCount+1, wordCount),
	}
}

// unavailableRecord is the fixed apologetic record returned when the model
// call itself fails. The transcript remains captured either way.
func unavailableRecord(sessionCount int) feedback.Record {
	return feedback.Record{
		Observations: []string{
			"Speech analysis is currently unavailable",
			"Technical issue encountered",
			"Your speech was recorded successfully",
		},
		Improvements: []string{
			"Try recording again in a moment",
			"Ensure stable internet connection",
		},
		Strengths: []string{
			"Persistence in practicing",
			"Using the speech coach tool",
		},
		OverallScore:  5,
		QuickTip:      "Technical issues resolved soon - keep practicing",
		ProgressNotes: fmt.Sprintf("Session #%d - Technical issue occurred", sessionCount+1),
	}
}

// statsScore maps the mean of all seven stats onto the 1-10 scale,
// truncating toward zero before clamping.
func statsScore(stats session.LiveStats) int {
	mean := (stats.Fluency + stats.Volume + stats.Articulation +
		stats.FillerWords + stats.SpeakingRate + stats.Confidence + stats.Clarity) / 7
	score := int(math.Trunc(mean / 10))
	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}
