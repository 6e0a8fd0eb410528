package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both backends must satisfy the same behaviour.
func forEachBackend(t *testing.T, fn func(t *testing.T, idx LexicalIndex)) {
	t.Helper()
	for _, backend := range ValidBackends {
		t.Run(string(backend), func(t *testing.T) {
			cfg := DefaultLexicalConfig()
			cfg.Backend = string(backend)
			idx, err := NewLexicalIndex(cfg)
			require.NoError(t, err)
			defer func() { _ = idx.Close() }()

			fn(t, idx)
		})
	}
}

func TestLexicalIndex_IndexAndSearch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		// Given: an indexed corpus
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{
			{ID: "1", Text: "goroutines and channels make concurrency simple"},
			{ID: "2", Text: "pasta recipes for a weeknight dinner"},
			{ID: "3", Text: "channels carry values between goroutines"},
		}))

		// When: searching for a term in two documents
		hits, err := idx.Search(ctx, "goroutines", 10)
		require.NoError(t, err)

		// Then: only matching documents come back with positive scores
		require.Len(t, hits, 2)
		ids := []string{hits[0].DocID, hits[1].DocID}
		assert.ElementsMatch(t, []string{"1", "3"}, ids)
		assert.Greater(t, hits[0].Score, 0.0)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
		assert.Equal(t, 3, idx.Count())
	})
}

func TestLexicalIndex_AnyTermMatches(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{
			{ID: "a", Text: "apples"},
			{ID: "b", Text: "oranges"},
			{ID: "c", Text: "grapes"},
		}))

		hits, err := idx.Search(ctx, "apples oranges", 10)
		require.NoError(t, err)

		assert.Len(t, hits, 2)
	})
}

func TestLexicalIndex_StemmedMatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{{ID: "1", Text: "running shoes"}}))

		hits, err := idx.Search(ctx, "runs", 10)
		require.NoError(t, err)

		require.Len(t, hits, 1)
		assert.Equal(t, "1", hits[0].DocID)
	})
}

func TestLexicalIndex_TitleBoost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		// Given: the same term once in a title and once in a body
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{
			{ID: "body", Title: "dinner", Text: "pasta ideas"},
			{ID: "title", Title: "pasta", Text: "dinner ideas"},
		}))

		// When: searching for it
		hits, err := idx.Search(ctx, "pasta", 10)
		require.NoError(t, err)

		// Then: the title match ranks first
		require.Len(t, hits, 2)
		assert.Equal(t, "title", hits[0].DocID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})
}

func TestLexicalIndex_ReindexReplaces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{{ID: "1", Text: "old words"}}))
		require.NoError(t, idx.Index(ctx, []Document{{ID: "1", Text: "fresh content"}}))

		old, err := idx.Search(ctx, "old", 10)
		require.NoError(t, err)
		fresh, err := idx.Search(ctx, "fresh", 10)
		require.NoError(t, err)

		assert.Empty(t, old)
		assert.Len(t, fresh, 1)
		assert.Equal(t, 1, idx.Count())
	})
}

func TestLexicalIndex_DegenerateQueries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []Document{{ID: "1", Text: "the quick brown fox"}}))

		tests := []struct {
			name  string
			query string
			limit int
		}{
			{"empty", "", 10},
			{"whitespace", "   ", 10},
			{"only stop words", "the and of", 10},
			{"no match", "zebra", 10},
			{"zero limit", "fox", 0},
			{"fts operators", `"NOT" AND (`, 10},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				hits, err := idx.Search(ctx, tt.query, tt.limit)
				require.NoError(t, err)
				assert.Empty(t, hits)
			})
		}
	})
}

func TestLexicalIndex_Closed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, idx LexicalIndex) {
		require.NoError(t, idx.Close())
		require.NoError(t, idx.Close())

		_, err := idx.Search(context.Background(), "x", 10)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, idx.Index(context.Background(), []Document{{ID: "1", Text: "x"}}), ErrClosed)
		assert.Zero(t, idx.Count())
	})
}

func TestLexicalIndex_CustomStopWords(t *testing.T) {
	for _, backend := range ValidBackends {
		t.Run(string(backend), func(t *testing.T) {
			// Given: an index that keeps "the"
			idx, err := NewLexicalIndex(LexicalConfig{Backend: string(backend), StopWords: []string{"fox"}})
			require.NoError(t, err)
			defer func() { _ = idx.Close() }()

			ctx := context.Background()
			require.NoError(t, idx.Index(ctx, []Document{{ID: "1", Text: "the fox"}}))

			// When/Then: "the" is searchable, "fox" is not
			hits, err := idx.Search(ctx, "the", 10)
			require.NoError(t, err)
			assert.Len(t, hits, 1)

			hits, err = idx.Search(ctx, "fox", 10)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestTextTokenizer_MatchesPrepare(t *testing.T) {
	// Given: the tokenizer the bleve analyzer is built from
	tok, err := textTokenizerConstructor(map[string]interface{}{"stop_words": []interface{}{"the", "and"}}, nil)
	require.NoError(t, err)
	text := "The dogs and cats ran"

	// When: tokenizing
	stream := tok.Tokenize([]byte(text))

	// Then: terms equal Prepare with the same stop list and offsets point into the input
	want := PrepareWith(text, BuildStopWordMap([]string{"the", "and"}))
	require.Len(t, stream, len(want))
	for i, token := range stream {
		assert.Equal(t, want[i], string(token.Term))
		assert.Equal(t, i+1, token.Position)
	}
	assert.Equal(t, "dogs", text[stream[0].Start:stream[0].End])
}
