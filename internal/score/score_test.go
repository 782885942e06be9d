package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/resolve-cli/internal/model"
)

func entityWith(fields map[string]any) *model.CanonicalEntity {
	e := model.NewEntity("e1", time.Now())
	for k, v := range fields {
		e.Fields[k] = model.FieldValue{FieldKey: k, Value: v}
	}
	return e
}

func TestCompleteness_Empty(t *testing.T) {
	e := entityWith(nil)
	assert.Equal(t, 0.0, Completeness(e, model.DefaultRegistry()))
}

func TestCompleteness_Partial(t *testing.T) {
	e := entityWith(map[string]any{
		model.FieldIdentifier: "201912345A",
		model.FieldName:       "ABC Pte Ltd",
		model.FieldWebsite:    "https://abc.com",
	})
	// 3 of 13 tracked fields.
	assert.Equal(t, 0.23, Completeness(e, model.DefaultRegistry()))
}

func TestCompleteness_UnknownSentinelNotCounted(t *testing.T) {
	reg := model.DefaultRegistry()
	e := entityWith(map[string]any{model.FieldCompanySize: model.UnknownSentinel})
	assert.Equal(t, 0.0, Completeness(e, reg))

	e.Fields[model.FieldCompanySize] = model.FieldValue{Value: "Small (11-50)"}
	assert.Equal(t, 0.08, Completeness(e, reg))
}

func TestCompleteness_UntrackedFieldsIgnored(t *testing.T) {
	e := entityWith(map[string]any{
		model.FieldDescription: "long description",
		model.FieldLocality:    "Singapore",
	})
	assert.Equal(t, 0.0, Completeness(e, model.DefaultRegistry()))
}

func TestCompleteness_MonotonicAndBounded(t *testing.T) {
	reg := model.DefaultRegistry()
	e := entityWith(nil)
	prev := Completeness(e, reg)

	for _, def := range reg.Tracked() {
		var v any = "x"
		switch def.Kind {
		case model.KindNumber:
			v = 1
		case model.KindSet:
			v = []string{"x"}
		case model.KindCategory:
			v = def.Categories[0]
		}
		e.Fields[def.Key] = model.FieldValue{FieldKey: def.Key, Value: v}

		s := Completeness(e, reg)
		assert.GreaterOrEqual(t, s, prev)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		prev = s
	}
	assert.Equal(t, 1.0, prev)
}

func TestMissing(t *testing.T) {
	reg := model.DefaultRegistry()
	e := entityWith(map[string]any{
		model.FieldName:        "ABC",
		model.FieldCompanySize: model.UnknownSentinel, // sentinel counts as missing
	})

	missing := Missing(e, reg)
	keys := make([]string, len(missing))
	for i, d := range missing {
		keys[i] = d.Key
	}
	assert.Len(t, missing, 12)
	assert.Contains(t, keys, model.FieldCompanySize)
	assert.NotContains(t, keys, model.FieldName)
}
