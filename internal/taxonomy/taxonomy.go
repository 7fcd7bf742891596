// Package taxonomy loads the keyword taxonomy driving classification.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Category names the five fixed tag categories of the taxonomy.
type Category string

// The taxonomy's fixed categories. Spoken languages are not a taxonomy
// category; they come from site-provided structured tags.
const (
	ProgrammingLanguages Category = "programmingLanguages"
	Frameworks           Category = "frameworks"
	Technologies         Category = "technologies"
	BusinessSoftware     Category = "businessSoftware"
	General              Category = "general"
)

// Categories lists all fixed categories in a stable order.
var Categories = []Category{
	ProgrammingLanguages,
	Frameworks,
	Technologies,
	BusinessSoftware,
	General,
}

// Taxonomy maps each category to its tag -> trigger substrings table.
// Immutable after load; safe for concurrent readers without locking.
type Taxonomy struct {
	categories map[Category]map[string][]string
}

// Load reads and validates a taxonomy JSON file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy file %s: %w", path, err)
	}
	return t, nil
}

// Parse validates raw taxonomy JSON. Every fixed category must be present
// and non-empty, and every tag must declare at least one non-empty trigger.
func Parse(data []byte) (*Taxonomy, error) {
	var raw map[string]map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	categories := make(map[Category]map[string][]string, len(Categories))
	for _, cat := range Categories {
		tags, ok := raw[string(cat)]
		if !ok {
			return nil, fmt.Errorf("taxonomy is missing category %q", cat)
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("taxonomy category %q has no tags", cat)
		}
		clean := make(map[string][]string, len(tags))
		for tag, triggers := range tags {
			if tag == "" {
				return nil, fmt.Errorf("taxonomy category %q has an empty tag name", cat)
			}
			if len(triggers) == 0 {
				return nil, fmt.Errorf("taxonomy tag %q in category %q has no triggers", tag, cat)
			}
			for _, trigger := range triggers {
				if trigger == "" {
					return nil, fmt.Errorf("taxonomy tag %q in category %q has an empty trigger", tag, cat)
				}
			}
			clean[tag] = append([]string(nil), triggers...)
		}
		categories[cat] = clean
	}

	return &Taxonomy{categories: categories}, nil
}

// Triggers returns the tag -> trigger substrings table for a category.
// Callers must not mutate the result.
func (t *Taxonomy) Triggers(cat Category) map[string][]string {
	return t.categories[cat]
}

// Tags returns the declared tag names of a category, sorted.
func (t *Taxonomy) Tags(cat Category) []string {
	tags := make([]string, 0, len(t.categories[cat]))
	for tag := range t.categories[cat] {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
