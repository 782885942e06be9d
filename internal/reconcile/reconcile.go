// Package reconcile arbitrates conflicting field values across sources.
// It is the only code allowed to change which FieldValue is current for a
// field; every candidate it sees is retained as provenance history.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Reconciler applies trust-weighted precedence to candidate field values.
type Reconciler struct {
	registry       *model.Registry
	combinableTier int // set-typed fields from tiers up to this merge instead of replacing
}

// New creates a Reconciler. combinableTier bounds which tiers may contribute
// to set-field unions; pass 0 for the default (directory scrapes and better).
func New(registry *model.Registry, combinableTier int) *Reconciler {
	if combinableTier <= 0 {
		combinableTier = model.TierScrape
	}
	return &Reconciler{registry: registry, combinableTier: combinableTier}
}

// Apply offers candidate values to an entity and returns one provenance
// record per touched field. Candidates always land in history; the current
// value changes only when a candidate outranks it under the precedence
// rules.
func (r *Reconciler) Apply(entity *model.CanonicalEntity, candidates []model.FieldValue, now time.Time) []model.FieldProvenance {
	byField := make(map[string][]model.FieldValue)
	for _, c := range candidates {
		if c.FieldKey == "" || c.Value == nil {
			continue
		}
		byField[c.FieldKey] = append(byField[c.FieldKey], c)
	}

	var records []model.FieldProvenance
	for key, cands := range byField {
		records = append(records, r.reconcileField(entity, key, cands, now))
	}

	if len(records) > 0 {
		entity.ReconciledAt = now
	}

	// Stable output order for callers and tests.
	sort.Slice(records, func(i, j int) bool { return records[i].FieldKey < records[j].FieldKey })
	return records
}

// reconcileField arbitrates one field. Precedence: trust tier dominates,
// then extraction recency, then confidence.
func (r *Reconciler) reconcileField(entity *model.CanonicalEntity, key string, cands []model.FieldValue, now time.Time) model.FieldProvenance {
	entity.History[key] = append(entity.History[key], cands...)

	ranked := append([]model.FieldValue(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool { return outranks(ranked[i], ranked[j]) })
	winner := ranked[0]

	current, hasCurrent := entity.Fields[key]

	fp := model.FieldProvenance{
		EntityID:  entity.ID,
		FieldKey:  key,
		Attempts:  attempts(cands),
		CreatedAt: now,
	}
	if hasCurrent {
		fp.PreviousValue = current.Value
		fp.PreviousSource = current.Source
	}

	replace := !hasCurrent
	if hasCurrent {
		if current.Tier == model.TierRegistry {
			// Authoritative data is only displaced by a strictly higher tier.
			replace = model.MoreTrusted(winner.Tier, current.Tier)
		} else {
			replace = outranks(winner, current)
		}
	}

	if replace {
		if def := r.registry.ByKey(key); def != nil && def.Kind == model.KindSet {
			winner = r.mergeSet(winner, ranked[1:], current, hasCurrent)
		}
		entity.Fields[key] = winner
		if key == model.FieldIdentifier {
			if id, ok := winner.Value.(string); ok {
				entity.Identifier = id
			}
		}
		fp.ValueChanged = hasCurrent && !equalValues(current.Value, winner.Value)
		current = winner
	} else if def := r.registry.ByKey(key); def != nil && def.Kind == model.KindSet {
		// Losing set candidates can still widen the current union.
		merged := r.mergeSet(current, ranked, current, true)
		if !equalValues(current.Value, merged.Value) {
			entity.Fields[key] = merged
			fp.ValueChanged = true
			current = merged
		}
	}

	fp.WinnerSource = current.Source
	fp.WinnerValue = current.Value
	fp.WinnerTier = current.Tier
	fp.WinnerConfidence = current.Confidence

	if fp.ValueChanged {
		zap.L().Debug("reconcile: field value changed",
			zap.String("entity_id", entity.ID),
			zap.String("field", key),
			zap.String("winner_source", current.Source),
			zap.Int("winner_tier", current.Tier),
		)
	}
	return fp
}

// mergeSet unions the winner's list with every other combinable-tier
// candidate, preserving the winner's source stamp. Scalar precedence still
// picked the winner; this only widens its value.
func (r *Reconciler) mergeSet(winner model.FieldValue, rest []model.FieldValue, current model.FieldValue, hasCurrent bool) model.FieldValue {
	if winner.Tier > r.combinableTier {
		return winner
	}

	union := toStringSlice(winner.Value)
	seen := make(map[string]bool, len(union))
	for _, s := range union {
		seen[normKey(s)] = true
	}

	add := func(fv model.FieldValue) {
		if fv.Tier > r.combinableTier {
			return
		}
		for _, s := range toStringSlice(fv.Value) {
			if len(union) >= 10 {
				return
			}
			if k := normKey(s); !seen[k] {
				seen[k] = true
				union = append(union, s)
			}
		}
	}

	if hasCurrent {
		add(current)
	}
	for _, fv := range rest {
		add(fv)
	}

	winner.Value = union
	return winner
}

// outranks implements the strict precedence order: tier, then recency, then
// confidence.
func outranks(a, b model.FieldValue) bool {
	if a.Tier != b.Tier {
		return model.MoreTrusted(a.Tier, b.Tier)
	}
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	return a.Confidence > b.Confidence
}

func attempts(cands []model.FieldValue) []model.ProvenanceAttempt {
	out := make([]model.ProvenanceAttempt, len(cands))
	for i, c := range cands {
		out[i] = model.ProvenanceAttempt{
			Source:      c.Source,
			Value:       c.Value,
			Confidence:  c.Confidence,
			Tier:        c.Tier,
			ExtractedAt: c.ExtractedAt,
		}
	}
	return out
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, it := range s {
			if str, ok := it.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	default:
		return nil
	}
}

func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalValues(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
