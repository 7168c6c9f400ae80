package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences breaks text after '.', '!' or '?' when the terminator is
// followed by whitespace and an uppercase letter. Fragments shorter than
// minLen characters are dropped.
func SplitSentences(text string, minLen int) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	emit := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" && utf8.RuneCountInString(s) >= minLen {
			out = append(out, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		emit(i + 1)
		i = j - 1
	}
	emit(len(runes))
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
