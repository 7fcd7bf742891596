// Package classify turns raw vacancy text into a structured summary using
// the keyword taxonomy. All functions are pure; no I/O.
package classify

import (
	"sort"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/taxonomy"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// Classify extracts category tags and the maximum required experience from
// free-form text. Summary.Languages is left empty; the caller populates it
// from the site's structured language tags.
func Classify(text string, tax *taxonomy.Taxonomy) vacancy.Summary {
	norm := Normalize(text)
	return vacancy.Summary{
		ProgrammingLanguages: matchCategory(norm, tax.Triggers(taxonomy.ProgrammingLanguages)),
		Frameworks:           matchCategory(norm, tax.Triggers(taxonomy.Frameworks)),
		Technologies:         matchCategory(norm, tax.Triggers(taxonomy.Technologies)),
		BusinessSoftware:     matchCategory(norm, tax.Triggers(taxonomy.BusinessSoftware)),
		GeneralKeywords:      matchCategory(norm, tax.Triggers(taxonomy.General)),
		YearsExperience:      ExtractYearsExperience(norm),
	}
}

// matchCategory collects every tag with at least one trigger occurring as a
// space-delimited token sequence in the normalized text. Triggers are run
// through the same normalization as the text, so a trigger like "Node.js"
// matches the token sequence "node js".
func matchCategory(norm string, triggers map[string][]string) []string {
	var matched []string
	for tag, candidates := range triggers {
		for _, trigger := range candidates {
			if containsToken(norm, Normalize(trigger)) {
				matched = append(matched, tag)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
