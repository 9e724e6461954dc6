package validation

import (
	"strings"
	"unicode"
)

// Slugify lowercases s, drops punctuation and joins words with single dashes.
// Letters outside ASCII (Turkish ğ, ü, ş, ö, ç, ı) are kept. The result may be
// empty; callers pick their own fallback.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			pendingDash = true
		}
	}
	return b.String()
}
