// Package store persists run output: canonical entities, field provenance,
// and review candidates. The engine treats every sink error as fatal — a
// run that cannot persist is a failed run, not a degraded one.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Sink is the persistence boundary for a run.
type Sink interface {
	SaveEntities(ctx context.Context, entities []*model.CanonicalEntity) error
	SaveProvenance(ctx context.Context, records []model.FieldProvenance) error
	SaveReviews(ctx context.Context, candidates []model.ReviewCandidate) error
	Migrate(ctx context.Context) error
	Close() error
}

// EntitySummary is the read-back projection used by reporting commands.
type EntitySummary struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier,omitempty"`
	Name         string    `json:"name"`
	QualityScore float64   `json:"quality_score"`
	ReconciledAt time.Time `json:"reconciled_at"`
}

// Reader is the query side of a sink. All durable sinks implement it.
type Reader interface {
	ListEntities(ctx context.Context) ([]EntitySummary, error)
	ListReviews(ctx context.Context, limit int) ([]model.ReviewCandidate, error)
}

// MemorySink keeps everything in process. Used by dry runs and tests.
type MemorySink struct {
	mu         sync.Mutex
	entities   map[string]*model.CanonicalEntity
	provenance []model.FieldProvenance
	reviews    []model.ReviewCandidate
}

// NewMemory creates an empty MemorySink.
func NewMemory() *MemorySink {
	return &MemorySink{entities: make(map[string]*model.CanonicalEntity)}
}

func (s *MemorySink) SaveEntities(_ context.Context, entities []*model.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		s.entities[e.ID] = e.Snapshot()
	}
	return nil
}

func (s *MemorySink) SaveProvenance(_ context.Context, records []model.FieldProvenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provenance = append(s.provenance, records...)
	return nil
}

func (s *MemorySink) SaveReviews(_ context.Context, candidates []model.ReviewCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, candidates...)
	return nil
}

func (s *MemorySink) Migrate(context.Context) error { return nil }
func (s *MemorySink) Close() error                  { return nil }

// Entities returns a copy of the stored entities.
func (s *MemorySink) Entities() []*model.CanonicalEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.CanonicalEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out
}

// Entity returns one stored entity by ID, or nil.
func (s *MemorySink) Entity(id string) *model.CanonicalEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[id]
}

// Provenance returns the stored provenance records.
func (s *MemorySink) Provenance() []model.FieldProvenance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FieldProvenance(nil), s.provenance...)
}

// Reviews returns the stored review candidates.
func (s *MemorySink) Reviews() []model.ReviewCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReviewCandidate(nil), s.reviews...)
}

func (s *MemorySink) ListEntities(context.Context) ([]EntitySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntitySummary, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, EntitySummary{
			ID:           e.ID,
			Identifier:   e.Identifier,
			Name:         e.Name(),
			QualityScore: e.QualityScore,
			ReconciledAt: e.ReconciledAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualityScore > out[j].QualityScore })
	return out, nil
}

func (s *MemorySink) ListReviews(_ context.Context, limit int) ([]model.ReviewCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.ReviewCandidate(nil), s.reviews...)
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
