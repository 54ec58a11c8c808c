package pipeline

import (
	"regexp"
	"unicode/utf8"
)

var wordRe = regexp.MustCompile(`\S+`)

// Chunk splits text into segments of at most width runes on whitespace
// boundaries. Words are never split; a word longer than width becomes its
// own chunk. Whitespace inside a chunk is kept as-is and whitespace between
// chunks is dropped.
func Chunk(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	words := wordRe.FindAllStringIndex(text, -1)
	if len(words) == 0 {
		return nil
	}

	// runeAt[i] is the rune offset of byte offset words[i][0]; runeEnd[i] of words[i][1].
	runeAt := make([]int, len(words))
	runeEnd := make([]int, len(words))
	pos, prev := 0, 0
	for i, w := range words {
		pos += utf8.RuneCountInString(text[prev:w[0]])
		runeAt[i] = pos
		pos += utf8.RuneCountInString(text[w[0]:w[1]])
		runeEnd[i] = pos
		prev = w[1]
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start
		for end+1 < len(words) && runeEnd[end+1]-runeAt[start] <= width {
			end++
		}
		chunks = append(chunks, text[words[start][0]:words[end][1]])
		start = end + 1
	}
	return chunks
}
