package review

import (
	"strings"
	"unicode"
)

// Normalize flattens a review onto a single line: newlines become spaces,
// every run of two or more whitespace characters becomes one space, and the
// result is trimmed. A lone whitespace character other than a newline is
// kept as is.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")

	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j-i > 1 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return strings.TrimSpace(b.String())
}

// NormalizeAll applies Normalize to every fragment, keeping order.
func NormalizeAll(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, Normalize(f))
	}
	return out
}
