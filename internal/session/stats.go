package session

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// volumeGain scales RMS amplitude of normalized samples onto the 0-100 scale.
// Calibrated for typical browser microphone levels.
const volumeGain = 500

// articulationNewWeight is the exponential smoothing weight given to the
// newest articulation sample. History keeps the remaining 0.7, which damps
// per-chunk jitter.
const articulationNewWeight = 0.3

// fillerLexicon lists the filler words counted against fluency. A token counts
// as filler when any lexicon entry is a substring of the lowercased token.
var fillerLexicon = []string{
	"um", "uh", "like", "you know", "so", "well", "actually", "basically", "literally",
}

// LiveStats holds the per-session running metrics. All values are percentages
// in [0, 100] except SpeakingRate, which is words per minute and only bounded
// below by zero.
type LiveStats struct {
	Fluency      float64 `json:"fluency"`
	Volume       float64 `json:"volume"`
	Articulation float64 `json:"articulation"`
	FillerWords  float64 `json:"fillerWords"`
	SpeakingRate float64 `json:"speakingRate"`
	Confidence   float64 `json:"confidence"`
	Clarity      float64 `json:"clarity"`
}

// Outcome reports what an Ingest call did with the observation. It
// distinguishes "nothing new to apply" from "computation failed, previous
// stats retained" so both paths stay observable.
type Outcome int

const (
	// OutcomeApplied means the observation updated the session state.
	OutcomeApplied Outcome = iota

	// OutcomeNoData means the observation carried no audio samples and no
	// non-blank text, so nothing changed.
	OutcomeNoData

	// OutcomeFailed means the update produced invalid values and was
	// discarded; the previous stats snapshot is retained unchanged.
	OutcomeFailed
)

// String returns the human-readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoData:
		return "no-data"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observation is one incremental chunk submitted during an active recording.
// Samples are float-normalized audio amplitudes in [-1, 1]; Text is an
// optional transcript fragment.
type Observation struct {
	Samples []float64
	Text    string
}

// accumulatorInput is the immutable snapshot an accumulate call works from.
type accumulatorInput struct {
	prev        LiveStats
	totalWords  int
	fillerCount int
	obs         Observation
	elapsed     time.Duration
	started     bool
}

// accumulatorResult carries the would-be next state. Callers commit it only
// when accumulate returns nil.
type accumulatorResult struct {
	stats       LiveStats
	words       []string
	totalWords  int
	fillerCount int
	applied     bool
}

// accumulate computes the next stats snapshot from the previous state and a
// new observation. It never mutates session state; the caller commits the
// result. A non-nil error means the computation produced non-finite values
// and the result must be discarded.
func accumulate(in accumulatorInput) (accumulatorResult, error) {
	res := accumulatorResult{
		stats:       in.prev,
		totalWords:  in.totalWords,
		fillerCount: in.fillerCount,
	}

	if len(in.obs.Samples) > 0 {
		var sum float64
		for _, s := range in.obs.Samples {
			sum += s * s
		}
		rms := math.Sqrt(sum / float64(len(in.obs.Samples)))
		res.stats.Volume = clampPercent(rms * volumeGain)
		res.applied = true
	}

	text := strings.TrimSpace(in.obs.Text)
	if text != "" {
		res.words = strings.Fields(text)
		tokens := strings.Fields(strings.ToLower(text))
		newWordCount := len(tokens)
		res.totalWords += newWordCount

		for _, tok := range tokens {
			if isFiller(tok) {
				res.fillerCount++
			}
		}

		// Speaking rate stays at its previous value when no time has
		// elapsed or the session was never started.
		if in.started {
			elapsedMinutes := in.elapsed.Minutes()
			if elapsedMinutes > 0 {
				res.stats.SpeakingRate = float64(res.totalWords) / elapsedMinutes
			}
		}

		if res.totalWords > 0 {
			res.stats.FillerWords = float64(res.fillerCount) / float64(res.totalWords) * 100
		} else {
			res.stats.FillerWords = 0
		}

		if newWordCount > 0 {
			complex := 0
			for _, tok := range tokens {
				if len(tok) > 4 {
					complex++
				}
			}
			sample := float64(complex) / float64(newWordCount) * 100
			res.stats.Articulation = res.stats.Articulation*(1-articulationNewWeight) + sample*articulationNewWeight
		}

		res.stats.Fluency = math.Max(0, 100-res.stats.FillerWords*1.5)
		res.stats.Confidence = res.stats.Volume*0.4 + res.stats.Fluency*0.6
		res.stats.Clarity = res.stats.Articulation*0.6 + res.stats.Fluency*0.4

		res.stats.clamp()
		res.applied = true
	}

	if err := res.stats.validate(); err != nil {
		return accumulatorResult{}, err
	}
	return res, nil
}

// isFiller reports whether any lexicon entry is a substring of the token.
// The token must already be lowercased.
func isFiller(token string) bool {
	for _, f := range fillerLexicon {
		if strings.Contains(token, f) {
			return true
		}
	}
	return false
}

// clamp bounds every percentage metric to [0, 100]. SpeakingRate is words per
// minute and is only floored at zero.
func (ls *LiveStats) clamp() {
	ls.Fluency = clampPercent(ls.Fluency)
	ls.Volume = clampPercent(ls.Volume)
	ls.Articulation = clampPercent(ls.Articulation)
	ls.FillerWords = clampPercent(ls.FillerWords)
	ls.Confidence = clampPercent(ls.Confidence)
	ls.Clarity = clampPercent(ls.Clarity)
	if ls.SpeakingRate < 0 {
		ls.SpeakingRate = 0
	}
}

// validate returns an error if any metric is NaN or infinite.
func (ls LiveStats) validate() error {
	fields := map[string]float64{
		"fluency":      ls.Fluency,
		"volume":       ls.Volume,
		"articulation": ls.Articulation,
		"fillerWords":  ls.FillerWords,
		"speakingRate": ls.SpeakingRate,
		"confidence":   ls.Confidence,
		"clarity":      ls.Clarity,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("session: stat %s is not finite: %v", name, v)
		}
	}
	return nil
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
