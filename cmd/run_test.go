package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/resolve-cli/internal/config"
	"github.com/sells-group/resolve-cli/internal/model"
)

func TestBuildSources(t *testing.T) {
	out := buildSources([]config.SourceConfig{
		{Name: "registry", Path: "registry.csv", Tier: 1},
		{Name: "scraper", Path: "scraped.jsonl", Tier: 3},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "registry.csv", out[0].Path)
	assert.Equal(t, model.SourceMeta{Name: "registry", Tier: 1}, out[0].Meta)
	assert.Equal(t, model.SourceMeta{Name: "scraper", Tier: 3}, out[1].Meta)
}

func TestBuildOrchestrator(t *testing.T) {
	c := &config.Config{
		Anthropic: config.AnthropicConfig{Key: "sk-ant-key", Model: "claude-haiku-4-5-20251001"},
		Enrich: config.EnrichConfig{
			Enabled: true, MaxTokens: 1024, TimeoutSecs: 30,
			Concurrency: 4, RequestsPerSecond: 2, AcceptThreshold: 0.4,
			CacheEntries: 64, CacheTTLHours: 1,
		},
	}

	orch := buildOrchestrator(c, model.DefaultRegistry())
	require.NotNil(t, orch)
	assert.False(t, orch.FallbackOnly())
	assert.Equal(t, 64, orch.CacheStats().MaxEntries)
}

func TestBuildRegistryAppliesTaxonomyOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/taxonomy.yaml"
	yaml := "categories:\n  industry:\n    - Freight\n    - Shipping\n    - Other\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	registry, err := buildRegistry(&config.Config{TaxonomyFile: path})
	require.NoError(t, err)

	def := registry.ByKey(model.FieldIndustry)
	require.NotNil(t, def)
	assert.Equal(t, []string{"Freight", "Shipping", "Other"}, def.Categories)
	assert.True(t, def.HasCategory("shipping"))

	// Default registry stays untouched without a file.
	plain, err := buildRegistry(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, model.Industries, plain.ByKey(model.FieldIndustry).Categories)
}

func TestBuildRegistryRejectsUnknownTaxonomyKey(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/taxonomy.yaml"
	yaml := "categories:\n  no_such_field:\n    - A\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := buildRegistry(&config.Config{TaxonomyFile: path})
	assert.ErrorContains(t, err, "unknown field")
}
