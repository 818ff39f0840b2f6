package search

import "strings"

// Snippet returns up to maxRunes of text around the first query term found,
// with "..." where text was cut. Without a match it returns the start of text.
func Snippet(text, query string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if maxRunes <= 0 || len(r) <= maxRunes {
		return text
	}

	folded := []rune(Fold(text))
	at := -1
	if len(folded) == len(r) {
		for _, term := range strings.Fields(Fold(query)) {
			if i := runeIndex(folded, []rune(term)); i >= 0 && (at < 0 || i < at) {
				at = i
			}
		}
	}

	start := 0
	if at > maxRunes/3 {
		start = at - maxRunes/3
	}
	end := start + maxRunes
	if end > len(r) {
		end = len(r)
		start = end - maxRunes
	}
	out := strings.TrimSpace(string(r[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(r) {
		out += "..."
	}
	return out
}

func runeIndex(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
