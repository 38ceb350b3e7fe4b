package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "HeLLo", expected: "hello"},
		{name: "strips punctuation", input: "fu*ck!!", expected: "fuck"},
		{name: "collapses whitespace", input: "a   b\t\nc", expected: "a b c"},
		{name: "undoes leetspeak", input: "l33t 5p34k 0n3 7w0 8", expected: "leet speak one two b"},
		{name: "trims", input: "  padded  ", expected: "padded"},
		{name: "keeps unicode letters", input: "Ça va?", expected: "ça va"},
		{name: "emoji only", input: "🔥🔥", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestContentFilter_IsProhibited(t *testing.T) {
	filter := NewContentFilter(DefaultBannedTerms)

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "plain term", input: "fuck", expected: true},
		{name: "uppercase", input: "FUCK", expected: true},
		{name: "letter spaced", input: "f u c k", expected: true},
		{name: "symbol inserted", input: "fu*ck", expected: true},
		{name: "leetspeak", input: "sh1t happens", expected: true},
		{name: "inside a sentence", input: "what the fuck is this", expected: true},
		{name: "substring of longer word", input: "motherfuckers", expected: true},
		{name: "clean text", input: "hello world", expected: false},
		{name: "leetspeak innocent word", input: "cl4ssic", expected: false},
		{name: "empty", input: "", expected: false},
		{name: "only symbols", input: "***", expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, filter.IsProhibited(tc.input))
		})
	}
}

func TestContentFilter_CustomTerms(t *testing.T) {
	t.Run("normalizes configured terms", func(t *testing.T) {
		filter := NewContentFilter([]string{"CLASS", " cl4ss ", ""})
		assert.Equal(t, []string{"class"}, filter.Terms())
		assert.True(t, filter.IsProhibited("cl4ssic"))
	})

	t.Run("empty list allows everything", func(t *testing.T) {
		filter := NewContentFilter(nil)
		assert.False(t, filter.IsProhibited("fuck"))
	})

	t.Run("regexp metacharacters in terms are literal", func(t *testing.T) {
		filter := NewContentFilter([]string{"a.b"})
		assert.Equal(t, []string{"ab"}, filter.Terms())
		assert.False(t, filter.IsProhibited("axb"))
		assert.True(t, filter.IsProhibited("a b"))
	})
}
