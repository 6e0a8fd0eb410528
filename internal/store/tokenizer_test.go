package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText_SplitsOnNonAlphanumeric(t *testing.T) {
	// Given: text with punctuation and mixed case
	text := "Hello, World! v2-beta"

	// When: tokenizing
	tokens := TokenizeText(text)

	// Then: terms are lowercased and offsets point into the original
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	assert.Equal(t, []string{"hello", "world", "v2", "beta"}, terms)
	assert.Equal(t, "Hello", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "World", text[tokens[1].Start:tokens[1].End])
}

func TestTokenizeText_Empty(t *testing.T) {
	assert.Empty(t, TokenizeText(""))
	assert.Empty(t, TokenizeText("  ... !! "))
}

func TestPrepare_DropsStopWordsAndStems(t *testing.T) {
	// Given: a sentence with stop words and inflections
	// When: preparing it
	terms := Prepare("The Cats are RUNNING to the store")

	// Then: stop words are gone and the rest is stemmed
	assert.Equal(t, []string{"cat", "run", "store"}, terms)
}

func TestPrepare_QueryAndDocumentAgree(t *testing.T) {
	// Inflected forms of one word must meet in the same stem.
	assert.Equal(t, Prepare("searching"), Prepare("searches"))
	assert.Equal(t, Prepare("runs"), Prepare("running"))
}

func TestPrepare_NonASCIIKeptUnstemmed(t *testing.T) {
	terms := Prepare("Café naïve")

	assert.Equal(t, []string{"café", "naïve"}, terms)
}

func TestPrepareWith_CustomStopWords(t *testing.T) {
	// Given: an empty stop list
	stop := BuildStopWordMap([]string{})

	// When: preparing text with default stop words
	terms := PrepareWith("the cat", stop)

	// Then: nothing is dropped
	assert.Equal(t, []string{"the", "cat"}, terms)
}

func TestPrepareTokens_KeepsOffsets(t *testing.T) {
	text := "the dogs barked"

	tokens := PrepareTokens(text, defaultStopWordMap)

	assert.Len(t, tokens, 2)
	assert.Equal(t, "dog", tokens[0].Term)
	assert.Equal(t, "dogs", text[tokens[0].Start:tokens[0].End])
}

func TestBuildStopWordMap(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  string
		isIn  bool
	}{
		{"nil uses defaults", nil, "the", true},
		{"custom list", []string{"Foo"}, "foo", true},
		{"custom list replaces defaults", []string{"foo"}, "the", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildStopWordMap(tt.input)
			_, ok := m[tt.want]
			assert.Equal(t, tt.isIn, ok)
		})
	}
}
