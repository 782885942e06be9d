package model

import "time"

// MatchStrategy names the rule that produced a match or review candidate.
type MatchStrategy string

const (
	MatchExactIdentifier MatchStrategy = "exact_identifier"
	MatchNormalizedName  MatchStrategy = "normalized_name"
	MatchFuzzyName       MatchStrategy = "fuzzy_name"
)

// MatchCandidate pairs an incoming record against an existing entity with a
// similarity score. Transient; exists only during resolution.
type MatchCandidate struct {
	EntityID   string        `json:"entity_id"`
	Similarity float64       `json:"similarity"`
	Strategy   MatchStrategy `json:"strategy"`
}

// ReviewCandidate is an ambiguous match decision deferred to an external
// review workflow instead of being silently merged.
type ReviewCandidate struct {
	RecordID   string        `json:"record_id"`
	SourceName string        `json:"source_name"`
	RecordName string        `json:"record_name"`
	EntityID   string        `json:"entity_id"`
	EntityName string        `json:"entity_name"`
	Similarity float64       `json:"similarity"`
	Strategy   MatchStrategy `json:"strategy"`
	Reason     string        `json:"reason"`
	CreatedAt  time.Time     `json:"created_at"`
}
