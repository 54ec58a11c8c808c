package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "fits in one", text: "Biology Chemistry", width: 100, want: []string{"Biology Chemistry"}},
		{name: "exact width", text: "a b c", width: 3, want: []string{"a b", "c"}},
		{name: "long word emitted whole", text: "abcdefgh ij", width: 4, want: []string{"abcdefgh", "ij"}},
		{name: "inner whitespace kept", text: "a\nb c", width: 3, want: []string{"a\nb", "c"}},
		{name: "boundary whitespace dropped", text: "  one   two  ", width: 3, want: []string{"one", "two"}},
		{name: "width counts runes", text: "éé éé", width: 5, want: []string{"éé éé"}},
		{name: "zero width", text: "a b", width: 0, want: []string{"a", "b"}},
		{name: "empty", text: "", width: 10, want: nil},
		{name: "whitespace only", text: " \n\t ", width: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.width))
		})
	}
}

func TestChunk_ReconstructsWithinWidth(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("Estimated expenses for academic year ")
		if i%7 == 0 {
			b.WriteString("\n\tSupercalifragilisticexpialidocious ")
		}
	}
	text := b.String()
	const width = 50

	chunks := Chunk(text, width)
	assert.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		if utf8.RuneCountInString(c) > width {
			assert.Len(t, strings.Fields(c), 1, "only a single word may exceed the width: %q", c)
		}
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}
