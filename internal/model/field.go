package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// FieldKind is the value type of a canonical field. Each kind carries its own
// validation rules; there is no open-ended "anything" field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindCategory FieldKind = "category"
	KindNumber   FieldKind = "number"
	KindSet      FieldKind = "set"
)

// UnknownSentinel marks an enumerated field whose value could not be
// determined. It never counts toward the quality score.
const UnknownSentinel = "Unknown"

// FieldDef describes one canonical field: its value kind, whether it counts
// toward the entity quality score, and (for category fields) the closed set
// of allowed values.
type FieldDef struct {
	Key        string    `json:"key"`
	Kind       FieldKind `json:"kind"`
	Tracked    bool      `json:"tracked"`
	Categories []string  `json:"categories,omitempty"`
}

// HasCategory reports whether v matches one of the field's allowed categories
// (case-insensitive). Always false for non-category fields.
func (f FieldDef) HasCategory(v string) bool {
	for _, c := range f.Categories {
		if strings.EqualFold(c, v) {
			return true
		}
	}
	return false
}

// Industries is the closed industry category set.
var Industries = []string{
	"Technology", "FinTech", "Healthcare", "E-commerce", "Manufacturing",
	"Professional Services", "Real Estate", "F&B", "Education", "Logistics",
	"Construction", "Retail", "Energy", "Media", "Automotive", "Agriculture",
	"Tourism", "Government", "Non-Profit", "Other",
}

// CompanySizes is the closed company size bucket set.
var CompanySizes = []string{
	"Micro (1-10)", "Small (11-50)", "Medium (51-200)",
	"Large (201-1000)", "Enterprise (1000+)", UnknownSentinel,
}

// Field keys used across the engine.
const (
	FieldIdentifier    = "identifier"
	FieldName          = "name"
	FieldWebsite       = "website"
	FieldIndustry      = "industry"
	FieldEmployeeCount = "employee_count"
	FieldCompanySize   = "company_size"
	FieldRevenue       = "revenue"
	FieldFoundingYear  = "founding_year"
	FieldContactEmail  = "contact_email"
	FieldContactPhone  = "contact_phone"
	FieldKeywords      = "keywords"
	FieldProducts      = "products"
	FieldServices      = "services"
	FieldDescription   = "description"
	FieldLocality      = "locality"
)

// Registry is an indexed collection of field definitions.
type Registry struct {
	Fields  []FieldDef
	byKey   map[string]*FieldDef
	tracked []*FieldDef
}

// NewRegistry creates a Registry with indexed lookups.
func NewRegistry(fields []FieldDef) *Registry {
	r := &Registry{
		Fields: fields,
		byKey:  make(map[string]*FieldDef, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Key] = f
		if f.Tracked {
			r.tracked = append(r.tracked, f)
		}
	}
	return r
}

// ByKey returns the field definition for the given key, or nil if not found.
func (r *Registry) ByKey(key string) *FieldDef {
	return r.byKey[key]
}

// Tracked returns the fields that count toward the quality score.
func (r *Registry) Tracked() []*FieldDef {
	return r.tracked
}

// OverrideCategories replaces the allowed values of a category field, for
// deployments that carry their own taxonomy.
func (r *Registry) OverrideCategories(key string, categories []string) error {
	def := r.byKey[key]
	if def == nil {
		return eris.Errorf("model: unknown field %q", key)
	}
	if def.Kind != KindCategory {
		return eris.Errorf("model: field %q is not a category field", key)
	}
	if len(categories) == 0 {
		return eris.Errorf("model: empty category list for %q", key)
	}
	def.Categories = categories
	return nil
}

// DefaultRegistry returns the standard field set: the tracked quality
// checklist plus the untracked context fields.
func DefaultRegistry() *Registry {
	return NewRegistry([]FieldDef{
		{Key: FieldIdentifier, Kind: KindText, Tracked: true},
		{Key: FieldName, Kind: KindText, Tracked: true},
		{Key: FieldWebsite, Kind: KindText, Tracked: true},
		{Key: FieldIndustry, Kind: KindCategory, Tracked: true, Categories: Industries},
		{Key: FieldEmployeeCount, Kind: KindNumber, Tracked: true},
		{Key: FieldCompanySize, Kind: KindCategory, Tracked: true, Categories: CompanySizes},
		{Key: FieldRevenue, Kind: KindNumber, Tracked: true},
		{Key: FieldFoundingYear, Kind: KindNumber, Tracked: true},
		{Key: FieldContactEmail, Kind: KindText, Tracked: true},
		{Key: FieldContactPhone, Kind: KindText, Tracked: true},
		{Key: FieldKeywords, Kind: KindSet, Tracked: true},
		{Key: FieldProducts, Kind: KindSet, Tracked: true},
		{Key: FieldServices, Kind: KindSet, Tracked: true},
		{Key: FieldDescription, Kind: KindText},
		{Key: FieldLocality, Kind: KindText},
	})
}
