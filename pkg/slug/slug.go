package slug

import (
	"strings"
	"unicode"
)

// Generate creates a URL-friendly slug from the given name: lower case, with
// every run of characters that are not letters or digits collapsed into a
// single hyphen.
//
// Examples:
//   - "Home Appliances" → "home-appliances"
//   - "  Phones & Tablets!" → "phones-tablets"
func Generate(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	return b.String()
}
