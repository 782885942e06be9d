// Package normalize converts raw source payloads into canonical
// SourceRecords: identifier validation, name comparison forms, type
// coercion, and basic cleanup. Pure transforms, deterministic for
// identical input.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Record normalizes one raw source payload into a SourceRecord. Malformed
// fields are dropped and noted on the record's issue list; the record itself
// always comes back as long as raw is non-nil.
func Record(raw map[string]any, meta model.SourceMeta, retrievedAt time.Time) *model.SourceRecord {
	rec := &model.SourceRecord{
		SourceName:  meta.Name,
		Tier:        meta.Tier,
		Fields:      make(map[string]model.FieldValue),
		RetrievedAt: retrievedAt,
	}

	set := func(key string, value any) {
		rec.Fields[key] = model.FieldValue{
			FieldKey:    key,
			Value:       value,
			Source:      meta.Name,
			Tier:        meta.Tier,
			Confidence:  model.DefaultSourceConfidence(meta.Tier),
			ExtractedAt: retrievedAt,
		}
	}
	drop := func(key, reason string) {
		rec.Issues = append(rec.Issues, model.FieldIssue{FieldKey: key, Reason: reason})
	}

	if raw := rawString(raw, "identifier", "uen", "registration_number"); raw != "" {
		if id := Identifier(raw); id != "" {
			rec.Identifier = id
			set(model.FieldIdentifier, id)
		} else {
			drop(model.FieldIdentifier, model.ErrInvalidIdentifier.Error())
		}
	}

	if name := strings.TrimSpace(rawString(raw, "name", "company_name")); name != "" {
		rec.Name = collapseWhitespace(name)
		rec.NameNorm = Name(rec.Name)
		set(model.FieldName, rec.Name)
	}

	if w := rawString(raw, "website", "url"); w != "" {
		if site := Website(w); site != "" {
			rec.Domain = Domain(site)
			set(model.FieldWebsite, site)
		} else {
			drop(model.FieldWebsite, "unparseable url")
		}
	}

	if ind := rawString(raw, "industry"); ind != "" {
		set(model.FieldIndustry, Industry(ind))
	}

	if v, ok := raw["employee_count"]; ok {
		if n, ok := EmployeeCount(v); ok {
			set(model.FieldEmployeeCount, n)
		} else {
			drop(model.FieldEmployeeCount, "out of range")
		}
	}

	if size := rawString(raw, "company_size"); size != "" {
		set(model.FieldCompanySize, CompanySize(size))
	}

	if v, ok := raw["revenue"]; ok {
		if f, ok := Revenue(v); ok {
			set(model.FieldRevenue, f)
		} else {
			drop(model.FieldRevenue, "out of range")
		}
	}

	if v, ok := raw["founding_year"]; ok {
		if y, ok := FoundingYear(v, retrievedAt); ok {
			set(model.FieldFoundingYear, y)
		} else {
			drop(model.FieldFoundingYear, "out of range")
		}
	}

	if e := rawString(raw, "contact_email", "email"); e != "" {
		if addr := Email(e); addr != "" {
			set(model.FieldContactEmail, addr)
		} else {
			drop(model.FieldContactEmail, "invalid email")
		}
	}

	if p := rawString(raw, "contact_phone", "phone"); p != "" {
		if num := Phone(p); num != "" {
			set(model.FieldContactPhone, num)
		} else {
			drop(model.FieldContactPhone, "invalid phone")
		}
	}

	for _, key := range []string{model.FieldKeywords, model.FieldProducts, model.FieldServices} {
		if v, ok := raw[key]; ok {
			if items := StringSet(v); len(items) > 0 {
				set(key, items)
			}
		}
	}

	if d := strings.TrimSpace(rawString(raw, "description")); d != "" {
		rec.Description = collapseWhitespace(d)
		set(model.FieldDescription, rec.Description)
	}

	if l := strings.TrimSpace(rawString(raw, "locality", "city")); l != "" {
		rec.Locality = collapseWhitespace(l)
		set(model.FieldLocality, rec.Locality)
	}

	rec.ID = recordID(rec)
	return rec
}

// recordID derives a stable content hash so identical inputs produce
// identical records.
func recordID(rec *model.SourceRecord) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d",
		rec.SourceName, rec.Identifier, rec.NameNorm, rec.Domain, rec.RetrievedAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Industry maps a raw industry string onto the closed category set: exact
// match first, then the alias table, then fuzzy similarity against the
// category names, else "Other".
func Industry(raw string) string {
	s := collapseWhitespace(strings.TrimSpace(raw))
	for _, ind := range model.Industries {
		if strings.EqualFold(s, ind) {
			return ind
		}
	}
	if mapped, ok := industryAliases[strings.ToLower(s)]; ok {
		return mapped
	}
	best, bestSim := "", 0.0
	for _, ind := range model.Industries {
		sim := levenshtein.Similarity(strings.ToLower(s), strings.ToLower(ind), nil)
		if sim > bestSim {
			best, bestSim = ind, sim
		}
	}
	if bestSim >= 0.8 {
		return best
	}
	return "Other"
}

var numberExtract = regexp.MustCompile(`\d+`)

// CompanySize maps a raw size string onto the closed bucket set, bucketing
// by the largest embedded number when the label itself doesn't match.
func CompanySize(raw string) string {
	s := strings.TrimSpace(raw)
	for _, size := range model.CompanySizes {
		if strings.EqualFold(s, size) {
			return size
		}
	}
	if nums := numberExtract.FindAllString(s, -1); len(nums) > 0 {
		max := 0
		for _, n := range nums {
			if v, err := strconv.Atoi(n); err == nil && v > max {
				max = v
			}
		}
		return SizeBucket(max)
	}
	return model.UnknownSentinel
}

// SizeBucket maps an employee count onto a size category.
func SizeBucket(employees int) string {
	switch {
	case employees <= 0:
		return model.UnknownSentinel
	case employees <= 10:
		return "Micro (1-10)"
	case employees <= 50:
		return "Small (11-50)"
	case employees <= 200:
		return "Medium (51-200)"
	case employees <= 1000:
		return "Large (201-1000)"
	default:
		return "Enterprise (1000+)"
	}
}

func rawString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}
