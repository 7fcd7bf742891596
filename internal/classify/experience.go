package classify

import (
	"strconv"
	"strings"
)

// experienceUnits are the tokens that mark a preceding number as a
// years-of-experience figure, in English and Latvian (all case inflections
// of "gads" that appear after a numeral).
var experienceUnits = map[string]struct{}{
	"year":   {},
	"years":  {},
	"yr":     {},
	"yrs":    {},
	"gads":   {},
	"gadi":   {},
	"gada":   {},
	"gadu":   {},
	"gadiem": {},
}

// ExtractYearsExperience scans normalized text for numbers immediately
// followed by a year unit ("3 years", "5+ years", "2 gadi") and returns the
// maximum, or 0 when none are stated.
func ExtractYearsExperience(normalized string) float64 {
	tokens := strings.Fields(normalized)
	var best float64
	for i, tok := range tokens {
		if _, ok := experienceUnits[tok]; !ok {
			continue
		}
		j := i - 1
		if j >= 0 && tokens[j] == "plus" {
			j--
		}
		if j < 0 {
			continue
		}
		if v, ok := parseYears(tokens[j]); ok && v > best {
			best = v
		}
	}
	return best
}

// parseYears accepts "3", "3+", "2,5" and "2.5" style tokens.
func parseYears(tok string) (float64, bool) {
	tok = strings.TrimSuffix(tok, "+")
	tok = strings.ReplaceAll(tok, ",", ".")
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
