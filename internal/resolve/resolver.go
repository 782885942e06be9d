// Package resolve assigns each normalized source record to a canonical
// entity, creating one when no existing entity matches.
package resolve

import (
	"sort"
	"sync"
	"time"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/normalize"
)

// Default similarity thresholds for fuzzy name matching.
const (
	DefaultHighThreshold   = 0.90
	DefaultReviewThreshold = 0.75
)

// Result is the outcome of resolving one record.
type Result struct {
	Entity  *model.CanonicalEntity
	Created bool
	Match   *model.MatchCandidate   // nil when a new entity was created
	Review  []model.ReviewCandidate // ambiguous near-matches, never auto-merged
}

// Resolver matches records to entities with a three-pass cascade:
//  1. Exact identifier match.
//  2. Exact normalized-name match (identifiers must not conflict).
//  3. Fuzzy name match within the record's blocking group.
//
// Each Resolve call runs as one critical section over the shared index, so
// two workers carrying the same company cannot race a duplicate into
// existence.
type Resolver struct {
	mu     sync.Mutex
	index  EntityIndex
	high   float64
	review float64
	now    func() time.Time
}

// New creates a Resolver. Threshold args <= 0 take the defaults.
func New(index EntityIndex, high, review float64) *Resolver {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	if review <= 0 {
		review = DefaultReviewThreshold
	}
	return &Resolver{index: index, high: high, review: review, now: time.Now}
}

// Resolve finds or creates the entity a record belongs to. Records with
// neither identifier nor name are rejected with ErrUnresolvableRecord.
func (r *Resolver) Resolve(rec *model.SourceRecord) (*Result, error) {
	if rec.Identifier == "" && rec.NameNorm == "" {
		return nil, eris.Wrapf(model.ErrUnresolvableRecord,
			"resolve: record %s from %s has no identifier and no name", rec.ID, rec.SourceName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Pass 1: identifier is authoritative; same identifier is always the
	// same entity regardless of what the names look like.
	if e := r.index.ByIdentifier(rec.Identifier); e != nil {
		zap.L().Debug("resolve: matched by identifier",
			zap.String("identifier", rec.Identifier),
			zap.String("entity_id", e.ID),
		)
		return &Result{
			Entity: e,
			Match:  &model.MatchCandidate{EntityID: e.ID, Similarity: 1.0, Strategy: model.MatchExactIdentifier},
		}, nil
	}

	// Blocking union: entities sharing the first name token plus entities
	// sharing the record's website domain. The domain signal catches typo'd
	// first tokens the name block would never compare.
	cands := r.index.Candidates(normalize.FirstToken(rec.NameNorm))
	if byDom := r.index.ByDomain(rec.Domain); len(byDom) > 0 {
		seen := make(map[string]struct{}, len(cands))
		for _, c := range cands {
			seen[c.Entity.ID] = struct{}{}
		}
		for _, c := range byDom {
			if _, dup := seen[c.Entity.ID]; !dup {
				cands = append(cands, c)
			}
		}
	}

	// Pass 2: exact normalized name. A conflicting identifier on either side
	// means two distinct companies that happen to share a name.
	for _, c := range cands {
		if c.NameNorm != rec.NameNorm || c.NameNorm == "" {
			continue
		}
		if rec.Identifier != "" && c.Entity.Identifier != "" && c.Entity.Identifier != rec.Identifier {
			continue
		}
		if rec.Identifier != "" {
			r.index.SetIdentifier(c.Entity.ID, rec.Identifier)
		}
		zap.L().Debug("resolve: matched by normalized name",
			zap.String("name_norm", rec.NameNorm),
			zap.String("entity_id", c.Entity.ID),
		)
		return &Result{
			Entity: c.Entity,
			Match:  &model.MatchCandidate{EntityID: c.Entity.ID, Similarity: 1.0, Strategy: model.MatchNormalizedName},
		}, nil
	}

	// Pass 3: fuzzy name similarity inside the blocking union. Confident
	// candidates compete under the tie-break rule; the middle band is
	// surfaced for review, never merged.
	var confident, band []scoredCandidate
	for _, c := range cands {
		if c.NameNorm == "" || rec.NameNorm == "" {
			continue
		}
		if rec.Identifier != "" && c.Entity.Identifier != "" && c.Entity.Identifier != rec.Identifier {
			continue
		}
		sim := levenshtein.Similarity(rec.NameNorm, c.NameNorm, nil)
		switch {
		case sim >= r.high:
			confident = append(confident, scoredCandidate{c, sim})
		case sim >= r.review:
			band = append(band, scoredCandidate{c, sim})
		}
	}
	sort.SliceStable(confident, func(i, j int) bool { return preferCandidate(confident[i], confident[j]) })
	sort.SliceStable(band, func(i, j int) bool { return band[i].sim > band[j].sim })

	now := r.now()
	if len(confident) > 0 {
		best := confident[0]
		if rec.Identifier != "" {
			r.index.SetIdentifier(best.Entity.ID, rec.Identifier)
		}
		res := &Result{
			Entity: best.Entity,
			Match:  &model.MatchCandidate{EntityID: best.Entity.ID, Similarity: best.sim, Strategy: model.MatchFuzzyName},
		}
		// Discarded alternatives surface for review so a wrong tie-break
		// stays auditable instead of becoming a silent merge chain.
		for _, sc := range confident[1:] {
			res.Review = append(res.Review, reviewCandidate(rec, sc, "confident match discarded by tie-break", now))
		}
		for _, sc := range band {
			res.Review = append(res.Review, reviewCandidate(rec, sc, "similarity inside manual-review band", now))
		}
		zap.L().Debug("resolve: matched by fuzzy name",
			zap.String("name_norm", rec.NameNorm),
			zap.String("entity_name_norm", best.NameNorm),
			zap.Float64("similarity", best.sim),
			zap.String("entity_id", best.Entity.ID),
			zap.Int("review_candidates", len(res.Review)),
		)
		return res, nil
	}

	// No confident match: create a new entity. Near-misses become review
	// candidates rather than silent merges.
	entity := model.NewEntity(uuid.NewString(), now)
	entity.Identifier = rec.Identifier
	r.index.Insert(entity, rec.Identifier, rec.NameNorm, rec.Domain)

	res := &Result{Entity: entity, Created: true}
	for _, sc := range band {
		res.Review = append(res.Review, reviewCandidate(rec, sc, "similarity inside manual-review band", now))
	}

	zap.L().Info("resolve: created new entity",
		zap.String("entity_id", entity.ID),
		zap.String("name", rec.Name),
		zap.String("source", rec.SourceName),
		zap.Int("review_candidates", len(res.Review)),
	)
	return res, nil
}

func reviewCandidate(rec *model.SourceRecord, sc scoredCandidate, reason string, now time.Time) model.ReviewCandidate {
	return model.ReviewCandidate{
		RecordID:   rec.ID,
		SourceName: rec.SourceName,
		RecordName: rec.Name,
		EntityID:   sc.Entity.ID,
		EntityName: sc.Entity.Name(),
		Similarity: sc.sim,
		Strategy:   model.MatchFuzzyName,
		Reason:     reason,
		CreatedAt:  now,
	}
}

// Commit runs fn inside the resolver's critical section, then refreshes the
// index with any name, identifier or domain the entity's winners carry.
// Matching reads entity state (identifier, fields, reconciliation time) that
// reconciliation mutates, so lookup and commit must share this one lock.
func (r *Resolver) Commit(entity *model.CanonicalEntity, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn()

	if entity.Identifier != "" {
		r.index.SetIdentifier(entity.ID, entity.Identifier)
	}
	if name := entity.Name(); name != "" {
		r.index.UpdateName(entity.ID, normalize.Name(name))
	}
	if fv, ok := entity.Fields[model.FieldWebsite]; ok {
		if site, ok := fv.Value.(string); ok {
			if d := normalize.Domain(site); d != "" {
				r.index.UpdateDomain(entity.ID, d)
			}
		}
	}
}

// Index exposes the underlying index for post-run iteration.
func (r *Resolver) Index() EntityIndex { return r.index }

type scoredCandidate struct {
	Indexed
	sim float64
}

// preferCandidate orders confident candidates by the tie-break rule: an
// entity already carrying a registry identifier wins, then the most
// recently reconciled, then raw similarity.
func preferCandidate(a, b scoredCandidate) bool {
	aID, bID := a.Entity.Identifier != "", b.Entity.Identifier != ""
	if aID != bID {
		return aID
	}
	if !a.Entity.ReconciledAt.Equal(b.Entity.ReconciledAt) {
		return a.Entity.ReconciledAt.After(b.Entity.ReconciledAt)
	}
	return a.sim > b.sim
}
