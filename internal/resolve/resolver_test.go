package resolve

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolve-cli/internal/model"
)

func rec(id, source, identifier, name, nameNorm string) *model.SourceRecord {
	return &model.SourceRecord{
		ID:         id,
		SourceName: source,
		Tier:       model.TierDirectory,
		Identifier: identifier,
		Name:       name,
		NameNorm:   nameNorm,
	}
}

func TestResolve_RejectsEmptyRecord(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	_, err := r.Resolve(rec("r1", "dir", "", "", ""))
	assert.ErrorIs(t, err, model.ErrUnresolvableRecord)
}

func TestResolve_SameIdentifierSameEntity(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	first, err := r.Resolve(rec("r1", "registry", "201912345A", "Tiger Trading Pte Ltd", "tiger trading"))
	require.NoError(t, err)
	assert.True(t, first.Created)

	// Wildly different name, same identifier: identifier wins.
	second, err := r.Resolve(rec("r2", "scraper", "201912345A", "TT Holdings", "tt holdings"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, model.MatchExactIdentifier, second.Match.Strategy)
}

func TestResolve_NameMatchClaimsIdentifierForLaterRecords(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	first, err := r.Resolve(rec("r1", "directory", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)

	second, err := r.Resolve(rec("r2", "registry", "201912345A", "Tiger Trading Pte Ltd", "tiger trading"))
	require.NoError(t, err)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, model.MatchNormalizedName, second.Match.Strategy)

	// The identifier learned in pass 2 now short-circuits pass 1.
	third, err := r.Resolve(rec("r3", "scraper", "201912345A", "totally different", "totally different"))
	require.NoError(t, err)
	assert.Equal(t, first.Entity.ID, third.Entity.ID)
	assert.Equal(t, model.MatchExactIdentifier, third.Match.Strategy)
}

func TestResolve_ConflictingIdentifiersNeverMerge(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	first, err := r.Resolve(rec("r1", "registry", "201912345A", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)

	// Same normalized name but a different registry identifier: two distinct
	// companies sharing a name.
	second, err := r.Resolve(rec("r2", "registry", "202054321B", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Entity.ID, second.Entity.ID)
}

func TestResolve_FuzzyMergeAboveHighThreshold(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	first, err := r.Resolve(rec("r1", "directory", "", "Tiger Tradings", "tiger tradings"))
	require.NoError(t, err)

	// One edit across 14 chars, similarity ~0.93.
	second, err := r.Resolve(rec("r2", "scraper", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, model.MatchFuzzyName, second.Match.Strategy)
	assert.Greater(t, second.Match.Similarity, 0.9)
}

func TestResolve_ReviewBandCreatesNewEntityWithCandidates(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	first, err := r.Resolve(rec("r1", "directory", "", "Tiger Traders", "tiger traders"))
	require.NoError(t, err)

	// Three edits across 13 chars, similarity ~0.77: ambiguous, never merged.
	second, err := r.Resolve(rec("r2", "scraper", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Entity.ID, second.Entity.ID)

	require.Len(t, second.Review, 1)
	rv := second.Review[0]
	assert.Equal(t, first.Entity.ID, rv.EntityID)
	assert.Equal(t, "r2", rv.RecordID)
	assert.InDelta(t, 0.77, rv.Similarity, 0.02)
	assert.Equal(t, model.MatchFuzzyName, rv.Strategy)
}

func TestResolve_BelowReviewBandIsJustANewEntity(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	_, err := r.Resolve(rec("r1", "directory", "", "Tiger Logistics", "tiger logistics"))
	require.NoError(t, err)

	second, err := r.Resolve(rec("r2", "scraper", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.Empty(t, second.Review)
}

func TestResolve_SharedDomainJoinsBlockingGroups(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	a := rec("r1", "directory", "", "Tiiger Trading", "tiiger trading")
	a.Domain = "tigertrading.sg"
	first, err := r.Resolve(a)
	require.NoError(t, err)

	// First tokens differ ("tiiger" vs "tiger"), so name blocking alone never
	// compares these two. The shared website domain bridges the groups; one
	// edit across 14 chars then merges above the high threshold.
	b := rec("r2", "scraper", "", "Tiger Trading", "tiger trading")
	b.Domain = "tigertrading.sg"
	second, err := r.Resolve(b)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, model.MatchFuzzyName, second.Match.Strategy)
}

func TestResolve_DifferentDomainsDoNotBridge(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	a := rec("r1", "directory", "", "Tiiger Trading", "tiiger trading")
	a.Domain = "tiigertrading.example.com"
	_, err := r.Resolve(a)
	require.NoError(t, err)

	b := rec("r2", "scraper", "", "Tiger Trading", "tiger trading")
	b.Domain = "tigertrading.sg"
	second, err := r.Resolve(b)
	require.NoError(t, err)
	assert.True(t, second.Created)
}

func TestResolve_FuzzyTieBreakPrefersIdentifiedEntity(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	_, err := r.Resolve(rec("r1", "directory", "", "Tiger Tradingz", "tiger tradingz"))
	require.NoError(t, err)
	withID, err := r.Resolve(rec("r2", "registry", "201912345A", "Tiger Tradings", "tiger tradings"))
	require.NoError(t, err)

	// Both candidates sit one edit away; the identified entity wins the tie.
	got, err := r.Resolve(rec("r3", "scraper", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)
	assert.False(t, got.Created)
	assert.Equal(t, withID.Entity.ID, got.Entity.ID)
}

func TestResolve_MatchSurfacesDiscardedConfidentAlternative(t *testing.T) {
	r := New(NewMemoryIndex(), 0, 0)

	a, err := r.Resolve(rec("r1", "directory", "", "Tiger Tradings", "tiger tradings"))
	require.NoError(t, err)

	b0 := rec("r2", "registry", "201912345A", "Tiiger Trading", "tiiger trading")
	b0.Domain = "tigertrading.sg"
	b, err := r.Resolve(b0)
	require.NoError(t, err)
	require.True(t, b.Created)

	// Both existing entities sit one edit from the incoming name (~0.93);
	// the identified one wins the tie-break, the other must surface for
	// review instead of vanishing.
	in := rec("r3", "scraper", "", "Tiger Trading", "tiger trading")
	in.Domain = "tigertrading.sg"
	got, err := r.Resolve(in)
	require.NoError(t, err)
	assert.False(t, got.Created)
	assert.Equal(t, b.Entity.ID, got.Entity.ID)

	require.Len(t, got.Review, 1)
	rv := got.Review[0]
	assert.Equal(t, a.Entity.ID, rv.EntityID)
	assert.Equal(t, "r3", rv.RecordID)
	assert.GreaterOrEqual(t, rv.Similarity, DefaultHighThreshold)
	assert.Equal(t, model.MatchFuzzyName, rv.Strategy)
}

func TestResolve_ConcurrentCommitAndResolve(t *testing.T) {
	ix := NewMemoryIndex()
	r := New(ix, 0, 0)

	first, err := r.Resolve(rec("r0", "directory", "", "Tiger Trading", "tiger trading"))
	require.NoError(t, err)

	// Resolving against an entity while a commit mutates its fields and
	// reconciliation time must serialize through the same critical section.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := r.Resolve(rec(fmt.Sprintf("r%d", i), "scraper", "", "Tiger Tradings", "tiger tradings"))
				assert.NoError(t, err)
				return
			}
			r.Commit(first.Entity, func() {
				first.Entity.Fields[model.FieldName] = model.FieldValue{
					FieldKey: model.FieldName, Value: "Tiger Trading Pte Ltd",
					Source: "scraper", Tier: model.TierScrape,
				}
				first.Entity.ReconciledAt = time.Now()
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ix.Len())
}

func TestResolve_ConcurrentSameIdentifierNoDuplicates(t *testing.T) {
	ix := NewMemoryIndex()
	r := New(ix, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Resolve(rec(fmt.Sprintf("r%d", i), "registry", "201912345A", "Tiger Trading", "tiger trading"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ix.Len())
}
