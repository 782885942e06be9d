package enrich

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/normalize"
)

// Context is the entity snapshot a prompt is built from. Only fields the
// entity already has land here; prompts never see other entities.
type Context struct {
	Name        string
	Description string
	Website     string
	Locality    string
	Industry    string
}

// ContextFor extracts the prompt context from an entity's current fields.
func ContextFor(e *model.CanonicalEntity) Context {
	get := func(key string) string {
		if fv, ok := e.Fields[key]; ok {
			if s, ok := fv.Value.(string); ok && s != model.UnknownSentinel {
				return s
			}
		}
		return ""
	}
	return Context{
		Name:        get(model.FieldName),
		Description: get(model.FieldDescription),
		Website:     get(model.FieldWebsite),
		Locality:    get(model.FieldLocality),
		Industry:    get(model.FieldIndustry),
	}
}

func (c Context) block() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", c.Name)
	if c.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", c.Website)
	}
	if c.Locality != "" {
		fmt.Fprintf(&b, "Location: %s\n", c.Locality)
	}
	if c.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", c.Industry)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncate(c.Description, 2000))
	}
	return b.String()
}

// Task defines how one field is enriched: the prompt to send and the grammar
// the response must pass.
type Task struct {
	FieldKey string
	Prompt   func(c Context, def *model.FieldDef) string
	Validate func(raw string, def *model.FieldDef) (any, error)
}

// DefaultTasks returns the enrichable-field task table.
func DefaultTasks() map[string]Task {
	return map[string]Task{
		model.FieldIndustry: {
			FieldKey: model.FieldIndustry,
			Prompt: func(c Context, def *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nClassify this company into exactly one of these industries:\n%s\nAnswer with the industry name only.",
					c.block(), strings.Join(def.Categories, ", "))
			},
			Validate: validateCategory,
		},
		model.FieldCompanySize: {
			FieldKey: model.FieldCompanySize,
			Prompt: func(c Context, def *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nEstimate this company's size as exactly one of these buckets:\n%s\nAnswer with the bucket only.",
					c.block(), strings.Join(def.Categories, ", "))
			},
			Validate: validateCategory,
		},
		model.FieldKeywords: {
			FieldKey: model.FieldKeywords,
			Prompt: func(c Context, _ *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nList up to 10 short keywords describing what this company does, comma-separated.",
					c.block())
			},
			Validate: validateSet,
		},
		model.FieldProducts: {
			FieldKey: model.FieldProducts,
			Prompt: func(c Context, _ *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nList up to 10 products this company sells. Be specific and avoid marketing language.\nFormat your response as:\nPRODUCTS: [products separated by semicolons, or \"Unknown\" if the company sells services only]",
					c.block())
			},
			Validate: validateSet,
		},
		model.FieldServices: {
			FieldKey: model.FieldServices,
			Prompt: func(c Context, _ *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nList up to 10 services this company offers. Be specific and avoid marketing language.\nFormat your response as:\nSERVICES: [services separated by semicolons, or \"Unknown\" if the company sells physical products only]",
					c.block())
			},
			Validate: validateSet,
		},
		model.FieldContactEmail: {
			FieldKey: model.FieldContactEmail,
			Prompt: func(c Context, _ *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nWhat is this company's general contact email address?\nFormat your response as:\nEMAIL: [email address or \"Not found\"]",
					c.block())
			},
			Validate: validateEmail,
		},
		model.FieldContactPhone: {
			FieldKey: model.FieldContactPhone,
			Prompt: func(c Context, _ *model.FieldDef) string {
				return fmt.Sprintf(
					"%s\nWhat is this company's general contact phone number?\nFormat your response as:\nPHONE: [phone number or \"Not found\"]",
					c.block())
			},
			Validate: validatePhone,
		},
	}
}

// validateCategory accepts only a member of the field's closed category set,
// or the unknown sentinel.
func validateCategory(raw string, def *model.FieldDef) (any, error) {
	v := cleanLine(raw)
	if strings.EqualFold(v, model.UnknownSentinel) {
		return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: model answered unknown", def.Key)
	}
	for _, c := range def.Categories {
		if strings.EqualFold(c, v) {
			return c, nil
		}
	}
	return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: %q is not an allowed category", def.Key, v)
}

// validateSet accepts a delimited list with at least one usable item.
// Newline-separated lists and a leading PRODUCTS:/SERVICES:/KEYWORDS: label
// are tolerated.
func validateSet(raw string, def *model.FieldDef) (any, error) {
	v := stripLabel(strings.TrimSpace(raw), "PRODUCTS", "SERVICES", "KEYWORDS")
	if strings.EqualFold(cleanLine(v), model.UnknownSentinel) {
		return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: model answered unknown", def.Key)
	}
	items := normalize.StringSet(strings.ReplaceAll(v, "\n", ","))
	if len(items) == 0 {
		return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: no usable items in %q", def.Key, raw)
	}
	return items, nil
}

// validateEmail accepts an "EMAIL: addr" line or a bare address.
func validateEmail(raw string, def *model.FieldDef) (any, error) {
	v := stripLabel(cleanLine(raw), "EMAIL")
	if isNotFound(v) {
		return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: model found no address", def.Key)
	}
	if addr := normalize.Email(v); addr != "" {
		return addr, nil
	}
	return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: %q is not a valid address", def.Key, v)
}

// validatePhone accepts a "PHONE: number" line or a bare number.
func validatePhone(raw string, def *model.FieldDef) (any, error) {
	v := stripLabel(cleanLine(raw), "PHONE")
	if isNotFound(v) {
		return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: model found no number", def.Key)
	}
	if num := normalize.Phone(v); num != "" {
		return num, nil
	}
	return nil, eris.Wrapf(model.ErrEnrichmentValidation, "enrich: %s: %q is not a valid number", def.Key, v)
}

// stripLabel removes a leading "LABEL:" the response format asked for.
func stripLabel(v string, labels ...string) string {
	upper := strings.ToUpper(v)
	for _, label := range labels {
		if strings.HasPrefix(upper, label+":") {
			return strings.TrimSpace(v[len(label)+1:])
		}
	}
	return v
}

func isNotFound(v string) bool {
	v = strings.Trim(v, "[]\"")
	return v == "" || strings.EqualFold(v, "not found") || strings.EqualFold(v, model.UnknownSentinel)
}

// cleanLine takes the first non-empty line of a response and strips the
// wrapping a chatty model tends to add.
func cleanLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(line, " \t\"'`.")
		if line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
