package metadata

import "strings"

// StripHTML removes every <...> span and keeps all other characters as-is.
// Entities are not decoded. An unterminated '<' drops the rest of the string.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
