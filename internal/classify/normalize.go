package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lower-cases text and collapses every punctuation/whitespace run
// to a single space, so trigger matching can anchor on space-delimited
// tokens. '+' and '#' survive because they are significant inside tag
// triggers like "c++" and "c#" and in experience figures like "3+", and a
// decimal separator between two digits survives so "2.5 years" stays one
// number. Latvian casing rules apply since listings are bilingual.
func Normalize(text string) string {
	lowered := []rune(cases.Lower(language.Latvian).String(text))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for i, r := range lowered {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#'
		if !keep && (r == '.' || r == ',') &&
			i > 0 && i+1 < len(lowered) &&
			unicode.IsDigit(lowered[i-1]) && unicode.IsDigit(lowered[i+1]) {
			keep = true
		}
		if keep {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// containsToken reports whether needle occurs in haystack delimited by
// spaces or string edges. Both inputs must already be normalized.
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
