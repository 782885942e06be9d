package enrich

import (
	"strings"
	"time"

	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/normalize"
)

// FallbackSource is the provenance source name stamped on fallback values.
const FallbackSource = "fallback-classifier"

// fallbackCap bounds fallback confidence; a keyword heuristic never outranks
// an accepted model answer.
const fallbackCap = 0.5

// industryKeywords drives the deterministic industry classifier used when
// the model is unavailable or its answer was rejected. Ordered: the first
// hit wins, so more specific terms come before generic ones.
var industryKeywords = []struct {
	keyword  string
	industry string
}{
	{"software", "Technology"},
	{"saas", "Technology"},
	{"technology", "Technology"},
	{"digital", "Technology"},
	{"payment", "FinTech"},
	{"lending", "FinTech"},
	{"finance", "FinTech"},
	{"bank", "FinTech"},
	{"clinic", "Healthcare"},
	{"medical", "Healthcare"},
	{"pharma", "Healthcare"},
	{"health", "Healthcare"},
	{"restaurant", "F&B"},
	{"cafe", "F&B"},
	{"catering", "F&B"},
	{"food", "F&B"},
	{"logistics", "Logistics"},
	{"freight", "Logistics"},
	{"shipping", "Logistics"},
	{"construction", "Construction"},
	{"contractor", "Construction"},
	{"renovation", "Construction"},
	{"school", "Education"},
	{"academy", "Education"},
	{"training", "Education"},
	{"real estate", "Real Estate"},
	{"property", "Real Estate"},
	{"manufactur", "Manufacturing"},
	{"factory", "Manufacturing"},
	{"retail", "Retail"},
	{"store", "Retail"},
	{"consulting", "Professional Services"},
	{"advisory", "Professional Services"},
	{"legal", "Professional Services"},
	{"accounting", "Professional Services"},
	{"hotel", "Tourism"},
	{"travel", "Tourism"},
	{"media", "Media"},
	{"marketing", "Media"},
	{"energy", "Energy"},
	{"solar", "Energy"},
	{"farm", "Agriculture"},
	{"agri", "Agriculture"},
}

// Fallback is the deterministic classifier used when the model cannot be
// trusted or reached. It only knows how to fill category fields.
type Fallback struct{}

// Classify attempts a fallback value for one field. Returns false when the
// heuristic has nothing defensible to offer.
func (Fallback) Classify(fieldKey string, c Context, entity *model.CanonicalEntity, now time.Time) (model.FieldValue, bool) {
	switch fieldKey {
	case model.FieldIndustry:
		return fallbackIndustry(c, now)
	case model.FieldCompanySize:
		return fallbackSize(entity, now)
	default:
		return model.FieldValue{}, false
	}
}

func fallbackIndustry(c Context, now time.Time) (model.FieldValue, bool) {
	text := strings.ToLower(c.Name + " " + c.Description)
	if strings.TrimSpace(text) == "" {
		return model.FieldValue{}, false
	}

	industry, confidence := "Other", 0.3
	for _, entry := range industryKeywords {
		if strings.Contains(text, entry.keyword) {
			industry, confidence = entry.industry, fallbackCap
			break
		}
	}

	return model.FieldValue{
		FieldKey:    model.FieldIndustry,
		Value:       industry,
		Source:      FallbackSource,
		Tier:        model.TierFallback,
		Confidence:  confidence,
		ExtractedAt: now,
	}, true
}

// asInt coerces the numeric shapes an employee count can arrive in; values
// re-hydrated from JSON come back as float64.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func fallbackSize(entity *model.CanonicalEntity, now time.Time) (model.FieldValue, bool) {
	fv, ok := entity.Fields[model.FieldEmployeeCount]
	if !ok || fv.IsZero() {
		return model.FieldValue{}, false
	}
	count, ok := asInt(fv.Value)
	if !ok {
		return model.FieldValue{}, false
	}

	return model.FieldValue{
		FieldKey:    model.FieldCompanySize,
		Value:       normalize.SizeBucket(count),
		Source:      FallbackSource,
		Tier:        model.TierFallback,
		Confidence:  fallbackCap,
		ExtractedAt: now,
	}, true
}
