package enrich

import "strings"

// DefaultAcceptThreshold is the minimum confidence an enrichment result
// needs before it becomes a reconciliation candidate.
const DefaultAcceptThreshold = 0.4

// errorMarkers are phrases that signal a hedging or failed response even
// when it technically parses.
var errorMarkers = []string{"error", "cannot", "unable", "not found", "unclear"}

// Confidence scores a validated model response. Starts at 0.7, rewarded for
// landing inside a closed category set, penalized for suspiciously short or
// rambling raw output and for hedging language.
func Confidence(raw string, categoryMatch bool) float64 {
	score := 0.7
	if categoryMatch {
		score += 0.2
	}
	if len(raw) < 5 {
		score -= 0.3
	}
	if len(raw) > 1000 {
		score -= 0.1
	}

	lower := strings.ToLower(raw)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.2
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
