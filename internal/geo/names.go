package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DisplayName tidies a dataset name for display. Names published in all
// caps ("BADEN-WÜRTTEMBERG") are title-cased; mixed-case names are kept.
func DisplayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return s
			}
		}
	}
	if !hasLetter {
		return s
	}
	return titleCaser.String(strings.ToLower(s))
}
