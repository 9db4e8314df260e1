package channel

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text into pieces of at most limit runes for platforms with
// a per-message cap. Text that fits is returned unchanged. Longer text breaks
// at newlines when possible, then at spaces, and only splits inside a word when
// a single word exceeds the limit; the separator at each break is dropped.
func ChunkText(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}
	var chunks []string
	remaining := text
	for remaining != "" {
		if utf8.RuneCountInString(remaining) <= limit {
			if strings.TrimSpace(remaining) != "" {
				chunks = append(chunks, remaining)
			}
			break
		}
		head := prefixRunes(remaining, limit)
		cut, skip := len(head), 0
		switch next := remaining[cut]; {
		case next == '\n' || next == ' ':
			skip = 1
		case strings.LastIndexByte(head, '\n') > 0:
			cut, skip = strings.LastIndexByte(head, '\n'), 1
		case strings.LastIndexByte(head, ' ') > 0:
			cut, skip = strings.LastIndexByte(head, ' '), 1
		}
		if piece := remaining[:cut]; strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
		remaining = remaining[cut+skip:]
	}
	return chunks
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
