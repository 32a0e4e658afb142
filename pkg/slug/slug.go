package slug

import (
	"strings"
	"unicode"
)

// Make lower-cases s and collapses every run of non-alphanumerics into a
// single hyphen. Leading and trailing separators are dropped.
func Make(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
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
