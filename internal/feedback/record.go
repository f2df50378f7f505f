// Package feedback defines the structured coaching record produced at the end
// of a recording session and a JSON-lines journal for persisting them.
package feedback

// Record is the structured coaching output for one completed recording.
// Field names follow the JSON contract consumed by the web client.
type Record struct {
	// Observations holds three short remarks about the delivery.
	Observations []string `json:"observations"`

	// Improvements lists one or two concrete things to work on.
	Improvements []string `json:"improvements"`

	// Strengths lists at least one thing that went well.
	Strengths []string `json:"strengths"`

	// OverallScore rates the session from 1 to 10.
	OverallScore int `json:"overallScore"`

	// QuickTip is a single actionable suggestion.
	QuickTip string `json:"quickTip"`

	// ProgressNotes comments on the trajectory across sessions.
	ProgressNotes string `json:"progressNotes"`
}

// Valid reports whether the record carries the minimum required content:
// three observations, at least one improvement and strength, and a score
// within [1, 10].
func (r Record) Valid() bool {
	if len(r.Observations) != 3 {
		return false
	}
	if len(r.Improvements) == 0 || len(r.Strengths) == 0 {
		return false
	}
	if r.OverallScore < 1 || r.OverallScore > 10 {
		return false
	}
	return true
}
