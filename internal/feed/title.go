package feed

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle canonicalizes an episode title for matching: lowercase,
// decompose and strip diacritics, collapse every run of non-alphanumerics
// into a single space. Matching is then exact.
func NormalizeTitle(s string) string {
	s = strings.ToLower(norm.NFKD.String(s))

	var sb strings.Builder
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from NFKD decomposition
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
