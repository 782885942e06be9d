package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRegistry_TrackedCount(t *testing.T) {
	r := DefaultRegistry()
	assert.Len(t, r.Tracked(), 13)
}

func TestRegistry_ByKey(t *testing.T) {
	r := DefaultRegistry()
	f := r.ByKey(FieldIndustry)
	assert.NotNil(t, f)
	assert.Equal(t, KindCategory, f.Kind)
	assert.True(t, f.Tracked)

	assert.Nil(t, r.ByKey("nope"))
}

func TestRegistry_ContextFieldsUntracked(t *testing.T) {
	r := DefaultRegistry()
	assert.False(t, r.ByKey(FieldDescription).Tracked)
	assert.False(t, r.ByKey(FieldLocality).Tracked)
}

func TestFieldDef_HasCategory(t *testing.T) {
	f := DefaultRegistry().ByKey(FieldIndustry)
	assert.True(t, f.HasCategory("technology"))
	assert.True(t, f.HasCategory("FinTech"))
	assert.False(t, f.HasCategory("Cloud Computing Solutions"))
}

func TestFieldValue_IsZero(t *testing.T) {
	assert.True(t, FieldValue{}.IsZero())
	assert.True(t, FieldValue{Value: ""}.IsZero())
	assert.True(t, FieldValue{Value: UnknownSentinel}.IsZero())
	assert.True(t, FieldValue{Value: []string{}}.IsZero())
	assert.False(t, FieldValue{Value: "Technology"}.IsZero())
	assert.False(t, FieldValue{Value: 42}.IsZero())
	assert.False(t, FieldValue{Value: []string{"saas"}}.IsZero())
}

func TestMoreTrusted(t *testing.T) {
	assert.True(t, MoreTrusted(TierRegistry, TierScrape))
	assert.False(t, MoreTrusted(TierModel, TierDirectory))
	assert.False(t, MoreTrusted(TierPaidAPI, TierPaidAPI))
}
