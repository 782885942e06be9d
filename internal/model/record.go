package model

import "time"

// SourceMeta identifies a data source and its configured trust tier.
type SourceMeta struct {
	Name string `json:"name"`
	Tier int    `json:"tier"`
}

// FieldIssue records a non-fatal problem found while normalizing one field.
// The field is dropped; the rest of the record proceeds.
type FieldIssue struct {
	FieldKey string `json:"field_key"`
	Reason   string `json:"reason"`
}

// SourceRecord is one normalized record from one source about one company
// attempt. Immutable once created; the resolver references it, never
// mutates it.
type SourceRecord struct {
	ID          string                `json:"id"`
	SourceName  string                `json:"source_name"`
	Tier        int                   `json:"tier"`
	Identifier  string                `json:"identifier,omitempty"`
	Name        string                `json:"name"`
	NameNorm    string                `json:"name_norm"`
	Domain      string                `json:"domain,omitempty"`
	Locality    string                `json:"locality,omitempty"`
	Description string                `json:"description,omitempty"`
	Fields      map[string]FieldValue `json:"fields"`
	Issues      []FieldIssue          `json:"issues,omitempty"`
	RetrievedAt time.Time             `json:"retrieved_at"`
}
