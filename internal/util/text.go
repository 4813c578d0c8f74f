package util

import (
	"strings"
)

const DefaultChunkSize = 1000

// SplitWords packs whitespace-separated words greedily into chunks whose
// joined length stays within maxChunkSize bytes. Each word already in a chunk
// accounts for one trailing separator. A single word longer than the limit
// becomes a chunk of its own.
func SplitWords(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, len(text)/maxChunkSize+1)
	current := make([]string, 0, 64)
	size := 0
	for _, w := range words {
		if len(current) > 0 && size+len(w) > maxChunkSize {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
			size = 0
		}
		current = append(current, w)
		size += len(w) + 1
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// SanitizeText removes bytes and control characters that Postgres text columns reject
// (especially NUL / 0x00 from some PDF extractors).
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch < 0x20 && ch != '\n' && ch != '\r' && ch != '\t' {
			continue
		}
		if ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

// Preview shortens s to at most maxRunes runes, appending "..." when cut.
func Preview(s string, maxRunes int) string {
	runes := []rune(s)
	if maxRunes < 0 || len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
