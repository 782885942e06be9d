package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Taxonomy is an optional per-deployment override of the category
// enumerations used for validation and enrichment prompts.
type Taxonomy struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadTaxonomy reads a taxonomy override file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read taxonomy %s", path)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "config: parse taxonomy %s", path)
	}
	if len(t.Categories) == 0 {
		return nil, eris.Errorf("config: taxonomy %s defines no categories", path)
	}
	return &t, nil
}

// Apply installs the overrides on a registry. Unknown or non-category field
// keys are rejected so a typo'd taxonomy fails loudly instead of silently
// keeping the defaults.
func (t *Taxonomy) Apply(registry *model.Registry) error {
	for key, cats := range t.Categories {
		if err := registry.OverrideCategories(key, cats); err != nil {
			return eris.Wrap(err, "config: apply taxonomy")
		}
	}
	return nil
}
