package model

// Trust tiers rank source reliability. Lower numbers are more trusted;
// tier 1 is the official registry and always wins conflicts.
const (
	TierRegistry  = 1 // official registry (authoritative)
	TierPaidAPI   = 2 // paid data API
	TierDirectory = 3 // business directory listing
	TierScrape    = 4 // scraped web page / social profile
	TierModel     = 5 // text-generation model output
	TierFallback  = 6 // deterministic fallback classifier
)

// MoreTrusted reports whether tier a outranks tier b.
func MoreTrusted(a, b int) bool {
	return a < b
}

// DefaultSourceConfidence returns the baseline extraction confidence for a
// value arriving from the given tier, before any response-level scoring.
func DefaultSourceConfidence(tier int) float64 {
	switch tier {
	case TierRegistry:
		return 1.0
	case TierPaidAPI:
		return 0.9
	case TierDirectory:
		return 0.8
	case TierScrape:
		return 0.7
	case TierModel:
		return 0.6
	default:
		return 0.5
	}
}
