package channel

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "  ", limit: 10, want: nil},
		{name: "fits", text: "hello", limit: 10, want: []string{"hello"}},
		{name: "keeps indentation and trailing newline", text: "    indented code\n", limit: 2000, want: []string{"    indented code\n"}},
		{name: "keeps indentation across split", text: "  ab\ncd", limit: 5, want: []string{"  ab", "cd"}},
		{name: "split on lines", text: "aaaa\nbbbb\ncccc", limit: 9, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "long line", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "prefers spaces", text: "one two three", limit: 8, want: []string{"one two", "three"}},
		{name: "no limit", text: "abc\ndef", limit: 0, want: []string{"abc\ndef"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ChunkText(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Fatalf("ChunkText(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestChunkTextRespectsRuneLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 4500)
	for _, chunk := range ChunkText(text, 2000) {
		if runeLen(chunk) > 2000 {
			t.Fatalf("chunk exceeds limit: %d runes", runeLen(chunk))
		}
	}
}

func runeLen(value string) int {
	return len([]rune(value))
}
