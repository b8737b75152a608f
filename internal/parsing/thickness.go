package parsing

import (
	"regexp"
	"strings"
	"unicode"
)

const Unknown = "unknown"

var (
	// Only 2cm and 3cm slabs are stocked. The trailing boundary is checked
	// before whitespace is dropped so "3cm premium" still matches; the
	// leading one after, so "42x60 3cm" reads as 603cm and does not.
	cmThicknessRegex   = regexp.MustCompile(`((?:2|3)\s*cm)(?:$|[^a-z])`)
	inchThicknessRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)"`)
)

// ExtractThickness makes a best-effort guess at a slab thickness. It never
// fails; text without a recognizable thickness yields "unknown".
func ExtractThickness(text string) string {
	lower := strings.ToLower(text)

	for _, loc := range cmThicknessRegex.FindAllStringSubmatchIndex(lower, -1) {
		if endsWithDigit(lower[:loc[2]]) {
			continue
		}
		return stripSpace(lower[loc[2]:loc[3]])
	}
	if m := inchThicknessRegex.FindStringSubmatch(stripSpace(lower)); m != nil {
		return m[1] + `"`
	}
	return Unknown
}

func endsWithDigit(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9'
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
