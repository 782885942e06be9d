package enrich

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/resolve-cli/internal/model"
)

func fv(key string, value any) model.FieldValue {
	return model.FieldValue{FieldKey: key, Value: value, Source: ModelSource, Tier: model.TierModel}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := Context{Name: "ABC", Description: "retail"}
	b := Context{Name: "ABC", Description: "retail"}

	assert.Equal(t, CacheKey(model.FieldIndustry, a), CacheKey(model.FieldIndustry, b))
	assert.NotEqual(t, CacheKey(model.FieldIndustry, a), CacheKey(model.FieldKeywords, a))
	assert.NotEqual(t, CacheKey(model.FieldIndustry, a), CacheKey(model.FieldIndustry, Context{Name: "XYZ"}))
}

func TestCacheKey_FieldSeparation(t *testing.T) {
	// Concatenation must not collide across field boundaries.
	a := Context{Name: "ab", Description: "c"}
	b := Context{Name: "a", Description: "bc"}
	assert.NotEqual(t, CacheKey(model.FieldIndustry, a), CacheKey(model.FieldIndustry, b))
}

func TestResponseCache_HitAndMiss(t *testing.T) {
	c := NewResponseCache(4, time.Minute)

	_, ok := c.Get("k1")
	assert.False(t, ok)

	c.Put("k1", fv(model.FieldIndustry, "Retail"))
	got, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "Retail", got.Value)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := NewResponseCache(4, 10*time.Millisecond)
	c.Put("k1", fv(model.FieldIndustry, "Retail"))

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestResponseCache_LRUEviction(t *testing.T) {
	c := NewResponseCache(2, time.Minute)
	c.Put("k1", fv(model.FieldIndustry, "v1"))
	c.Put("k2", fv(model.FieldIndustry, "v2"))

	// Touch k1 so k2 becomes the eviction victim.
	_, ok := c.Get("k1")
	assert.True(t, ok)

	c.Put("k3", fv(model.FieldIndustry, "v3"))

	_, ok = c.Get("k1")
	assert.True(t, ok)
	_, ok = c.Get("k2")
	assert.False(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestResponseCache_ConcurrentAccess(t *testing.T) {
	c := NewResponseCache(64, time.Minute)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%16)
				c.Put(key, fv(model.FieldIndustry, "v"))
				c.Get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.LessOrEqual(t, c.Stats().Entries, 16)
}
