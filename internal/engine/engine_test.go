package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolve-cli/internal/ingest"
	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/store"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func source(path, name string, tier int) ingest.Source {
	return ingest.Source{Path: path, Meta: model.SourceMeta{Name: name, Tier: tier}}
}

func TestRun_MergesSameIdentifierAcrossSources(t *testing.T) {
	registry := writeSource(t, "registry.csv",
		"identifier,name,founding_year\n"+
			"201912345A,Tiger Trading Pte Ltd,2019\n")
	scraper := writeSource(t, "scraped.jsonl",
		`{"identifier":"201912345A","name":"Tiger Trading","website":"https://tigertrading.example.com","industry":"Logistics"}`+"\n")

	sink := store.NewMemory()
	eng := New(Options{
		Sources: []ingest.Source{
			source(registry, "registry", model.TierRegistry),
			source(scraper, "scraper", model.TierScrape),
		},
		Sink: sink,
	})

	stats, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Created)
	assert.Equal(t, int64(1), stats.Matched)
	assert.Equal(t, 1, stats.Entities)

	entities := sink.Entities()
	require.Len(t, entities, 1)
	e := entities[0]
	assert.Equal(t, "201912345A", e.Identifier)
	// Registry name outranks the scraped one regardless of arrival order.
	assert.Equal(t, "Tiger Trading Pte Ltd", e.Name())
	assert.Equal(t, "Logistics", e.Fields[model.FieldIndustry].Value)
	assert.Greater(t, e.QualityScore, 0.0)
	assert.False(t, e.ReconciledAt.IsZero())

	assert.NotEmpty(t, sink.Provenance())
	assert.Equal(t, stats.Provenance, len(sink.Provenance()))
}

func TestRun_SkipsRowsWithNeitherIdentifierNorName(t *testing.T) {
	path := writeSource(t, "rows.csv",
		"name,website\n"+
			"Tiger Trading,https://tigertrading.example.com\n"+
			",https://anonymous.example.com\n")

	sink := store.NewMemory()
	eng := New(Options{Sources: []ingest.Source{source(path, "scraper", model.TierScrape)}, Sink: sink})

	stats, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, 1, stats.Entities)
}

func TestRun_NearMissBecomesReviewCandidate(t *testing.T) {
	path := writeSource(t, "rows.csv",
		"name\n"+
			"Tiger Trading\n"+
			"Tiger Traders\n")

	sink := store.NewMemory()
	eng := New(Options{
		Sources: []ingest.Source{source(path, "scraper", model.TierScrape)},
		Sink:    sink,
		Workers: 1, // deterministic arrival order
	})

	stats, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Reviews)

	reviews := sink.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, model.MatchFuzzyName, reviews[0].Strategy)
	assert.InDelta(t, 0.77, reviews[0].Similarity, 0.02)
}

func TestRun_DropsMalformedFieldsButKeepsRecord(t *testing.T) {
	path := writeSource(t, "rows.csv",
		"name,employee_count,contact_email\n"+
			"Tiger Trading,not-a-number,not-an-email\n")

	sink := store.NewMemory()
	eng := New(Options{Sources: []ingest.Source{source(path, "scraper", model.TierScrape)}, Sink: sink})

	stats, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Records)
	assert.Equal(t, int64(0), stats.Skipped)
	assert.Equal(t, int64(2), stats.FieldsDropped)
	require.Len(t, sink.Entities(), 1)
	assert.Equal(t, "Tiger Trading", sink.Entities()[0].Name())
}

type stubEnricher struct {
	candidates   func(*model.CanonicalEntity) []model.FieldValue
	fallbackOnly bool
}

func (s *stubEnricher) EnrichAll(ctx context.Context, entities []*model.CanonicalEntity, apply func(*model.CanonicalEntity, []model.FieldValue)) error {
	for _, e := range entities {
		if cands := s.candidates(e); len(cands) > 0 {
			apply(e, cands)
		}
	}
	return nil
}

func (s *stubEnricher) FallbackOnly() bool { return s.fallbackOnly }

func TestRun_EnrichmentCandidatesGoThroughReconciler(t *testing.T) {
	path := writeSource(t, "rows.csv", "name\nTiger Trading\n")

	now := time.Now()
	enricher := &stubEnricher{
		candidates: func(e *model.CanonicalEntity) []model.FieldValue {
			return []model.FieldValue{{
				FieldKey: model.FieldIndustry, Value: "Logistics",
				Source: "model", Tier: model.TierModel,
				Confidence: 0.9, ExtractedAt: now,
			}}
		},
		fallbackOnly: true,
	}

	sink := store.NewMemory()
	eng := New(Options{
		Sources:  []ingest.Source{source(path, "scraper", model.TierScrape)},
		Enricher: enricher,
		Sink:     sink,
	})

	stats, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.FallbackOnly)

	entities := sink.Entities()
	require.Len(t, entities, 1)
	fv := entities[0].Fields[model.FieldIndustry]
	assert.Equal(t, "Logistics", fv.Value)
	assert.Equal(t, model.TierModel, fv.Tier)

	var found bool
	for _, p := range sink.Provenance() {
		if p.FieldKey == model.FieldIndustry && p.WinnerSource == "model" {
			found = true
		}
	}
	assert.True(t, found, "enrichment provenance should be recorded")
}

type cancellingEnricher struct {
	cancel context.CancelFunc
}

func (s *cancellingEnricher) EnrichAll(ctx context.Context, entities []*model.CanonicalEntity, apply func(*model.CanonicalEntity, []model.FieldValue)) error {
	apply(entities[0], []model.FieldValue{{
		FieldKey: model.FieldIndustry, Value: "Logistics",
		Source: "model", Tier: model.TierModel,
		Confidence: 0.9, ExtractedAt: time.Now(),
	}})
	s.cancel()
	return ctx.Err()
}

func (s *cancellingEnricher) FallbackOnly() bool { return false }

func TestRun_CancelledEnrichmentKeepsPartialResults(t *testing.T) {
	path := writeSource(t, "rows.csv", "name\nTiger Trading\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := store.NewMemory()
	eng := New(Options{
		Sources:  []ingest.Source{source(path, "scraper", model.TierScrape)},
		Enricher: &cancellingEnricher{cancel: cancel},
		Sink:     sink,
	})

	// Cancellation mid-enrichment is not a run failure: whatever was already
	// reconciled is scored and persisted.
	stats, err := eng.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entities)

	entities := sink.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "Logistics", entities[0].Fields[model.FieldIndustry].Value)
	assert.Greater(t, entities[0].QualityScore, 0.0)
}

type failingSink struct {
	store.Sink
}

func (s *failingSink) SaveEntities(context.Context, []*model.CanonicalEntity) error {
	return eris.New("disk full")
}

func TestRun_SinkErrorIsFatal(t *testing.T) {
	path := writeSource(t, "rows.csv", "name\nTiger Trading\n")

	eng := New(Options{
		Sources: []ingest.Source{source(path, "scraper", model.TierScrape)},
		Sink:    &failingSink{Sink: store.NewMemory()},
	})

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save entities")
}

func TestRun_StreamErrorIsFatal(t *testing.T) {
	path := writeSource(t, "rows.parquet", "not a real file")

	eng := New(Options{
		Sources: []ingest.Source{source(path, "lake", model.TierScrape)},
		Sink:    store.NewMemory(),
	})

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestRun_MissingSourceFileIsFatal(t *testing.T) {
	eng := New(Options{
		Sources: []ingest.Source{source(filepath.Join(t.TempDir(), "absent.csv"), "registry", model.TierRegistry)},
		Sink:    store.NewMemory(),
	})

	_, err := eng.Run(context.Background())
	require.Error(t, err)
}
