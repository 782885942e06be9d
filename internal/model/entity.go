package model

import "time"

// FieldValue is one candidate (or current) value for a canonical field,
// stamped with the source that produced it.
type FieldValue struct {
	FieldKey    string    `json:"field_key"`
	Value       any       `json:"value"`
	Source      string    `json:"source"`
	Tier        int       `json:"tier"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// IsZero reports whether the value is absent or the unknown sentinel.
func (fv FieldValue) IsZero() bool {
	switch v := fv.Value.(type) {
	case nil:
		return true
	case string:
		return v == "" || v == UnknownSentinel
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// CanonicalEntity is the single reconciled record for one real-world company.
// Fields holds the current winning value per field key; History retains every
// candidate ever offered, never deleted. Only the reconciler changes Fields.
type CanonicalEntity struct {
	ID           string                  `json:"id"`
	Identifier   string                  `json:"identifier,omitempty"`
	Fields       map[string]FieldValue   `json:"fields"`
	History      map[string][]FieldValue `json:"history"`
	QualityScore float64                 `json:"quality_score"`
	CreatedAt    time.Time               `json:"created_at"`
	ReconciledAt time.Time               `json:"reconciled_at"`
}

// NewEntity creates an empty canonical entity with the given surrogate key.
func NewEntity(id string, now time.Time) *CanonicalEntity {
	return &CanonicalEntity{
		ID:        id,
		Fields:    make(map[string]FieldValue),
		History:   make(map[string][]FieldValue),
		CreatedAt: now,
	}
}

// Current returns the current value for a field and whether one is set.
func (e *CanonicalEntity) Current(key string) (FieldValue, bool) {
	fv, ok := e.Fields[key]
	return fv, ok
}

// Name returns the current name value, or "".
func (e *CanonicalEntity) Name() string {
	if fv, ok := e.Fields[FieldName]; ok {
		if s, ok := fv.Value.(string); ok {
			return s
		}
	}
	return ""
}

// Snapshot returns a deep copy of the entity, safe to hand across the
// persistence boundary while workers keep mutating the original.
func (e *CanonicalEntity) Snapshot() *CanonicalEntity {
	cp := *e
	cp.Fields = make(map[string]FieldValue, len(e.Fields))
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	cp.History = make(map[string][]FieldValue, len(e.History))
	for k, vs := range e.History {
		cp.History[k] = append([]FieldValue(nil), vs...)
	}
	return &cp
}
