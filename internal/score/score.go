// Package score computes the aggregate completeness score of a canonical
// entity from its tracked-field checklist. Pure functions, no side effects.
package score

import (
	"math"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Completeness returns the fraction of tracked fields whose current value is
// non-null (and, for enumerated fields, not the unknown sentinel), rounded
// to two decimals. Always in [0, 1]; never fails.
func Completeness(entity *model.CanonicalEntity, registry *model.Registry) float64 {
	tracked := registry.Tracked()
	if len(tracked) == 0 {
		return 0
	}

	filled := 0
	for _, def := range tracked {
		fv, ok := entity.Fields[def.Key]
		if !ok || fv.IsZero() {
			continue
		}
		filled++
	}

	return round2(float64(filled) / float64(len(tracked)))
}

// Missing returns the tracked fields the entity has no usable value for, in
// registry order. This is the enrichment orchestrator's work list.
func Missing(entity *model.CanonicalEntity, registry *model.Registry) []*model.FieldDef {
	var out []*model.FieldDef
	for _, def := range registry.Tracked() {
		fv, ok := entity.Fields[def.Key]
		if !ok || fv.IsZero() {
			out = append(out, def)
		}
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
