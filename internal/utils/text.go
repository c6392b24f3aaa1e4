package utils

import "strings"

// ChunkString cuts s into consecutive pieces of at most size runes.
// Boundaries are fixed-size and ignore word breaks; concatenating the pieces yields s.
func ChunkString(s string, size int) []string {
	if size <= 0 || s == "" {
		return []string{s}
	}
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
