// Package catalog holds the built-in list of common technology acronyms used
// to seed an empty (or partially filled) abbreviation store.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogItem struct {
	Abbreviation string `yaml:"abbreviation"`
	FullForm     string `yaml:"fullForm"`
	Description  string `yaml:"description,omitempty"`
}

type catalogDocument struct {
	Version int           `yaml:"version"`
	Entries []catalogItem `yaml:"entries"`
}

// Load returns the built-in seed catalog in document order.
func Load() ([]model.Entry, error) {
	return Parse(catalogYAML)
}

// Parse decodes a catalog document and validates minimal invariants: every
// item has a non-blank abbreviation and full form within the length limits,
// and no abbreviation appears twice.
func Parse(data []byte) ([]model.Entry, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("catalog has no entries")
	}

	seen := make(map[string]struct{}, len(doc.Entries))
	entries := make([]model.Entry, 0, len(doc.Entries))
	for i, item := range doc.Entries {
		abbr := strings.TrimSpace(item.Abbreviation)
		if abbr == "" {
			return nil, fmt.Errorf("catalog entry %d has empty abbreviation", i)
		}
		if utf8.RuneCountInString(abbr) > model.MaxAbbreviationLength {
			return nil, fmt.Errorf("catalog entry %q: abbreviation longer than %d characters", abbr, model.MaxAbbreviationLength)
		}
		if _, exists := seen[abbr]; exists {
			return nil, fmt.Errorf("catalog contains duplicate abbreviation %q", abbr)
		}
		seen[abbr] = struct{}{}

		fullForm := strings.TrimSpace(item.FullForm)
		if fullForm == "" {
			return nil, fmt.Errorf("catalog entry %q has empty full form", abbr)
		}
		if utf8.RuneCountInString(fullForm) > model.MaxFullFormLength {
			return nil, fmt.Errorf("catalog entry %q: full form longer than %d characters", abbr, model.MaxFullFormLength)
		}

		entries = append(entries, model.Entry{
			Abbreviation: abbr,
			FullForm:     fullForm,
			Description:  item.Description,
		})
	}
	return entries, nil
}
