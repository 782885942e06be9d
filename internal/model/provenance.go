package model

import "time"

// ProvenanceAttempt records a single candidate offered for a field during
// one reconciliation pass.
type ProvenanceAttempt struct {
	Source      string    `json:"source"`
	Value       any       `json:"value"`
	Confidence  float64   `json:"confidence"`
	Tier        int       `json:"tier"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// FieldProvenance is the per-field audit trail for one reconciliation pass:
// every contributing attempt, which one became current, and the displaced
// value if the winner changed.
type FieldProvenance struct {
	EntityID         string              `json:"entity_id"`
	FieldKey         string              `json:"field_key"`
	WinnerSource     string              `json:"winner_source"`
	WinnerValue      any                 `json:"winner_value"`
	WinnerTier       int                 `json:"winner_tier"`
	WinnerConfidence float64             `json:"winner_confidence"`
	Attempts         []ProvenanceAttempt `json:"attempts"`
	PreviousValue    any                 `json:"previous_value,omitempty"`
	PreviousSource   string              `json:"previous_source,omitempty"`
	ValueChanged     bool                `json:"value_changed"`
	CreatedAt        time.Time           `json:"created_at"`
}
