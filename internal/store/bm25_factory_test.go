package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		input   string
		want    Backend
		wantErr bool
	}{
		{"", BackendSQLite, false},
		{"sqlite", BackendSQLite, false},
		{"bleve", BackendBleve, false},
		{"lucene", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBackend(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown lexical backend")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLexicalIndex_SelectsBackend(t *testing.T) {
	// When: creating with the default config
	idx, err := NewLexicalIndex(DefaultLexicalConfig())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: SQLite is used
	assert.IsType(t, &SQLiteLexicalIndex{}, idx)

	bleveIdx, err := NewLexicalIndex(LexicalConfig{Backend: "bleve"})
	require.NoError(t, err)
	defer func() { _ = bleveIdx.Close() }()
	assert.IsType(t, &BleveLexicalIndex{}, bleveIdx)
}

func TestNewLexicalIndex_UnknownBackend(t *testing.T) {
	_, err := NewLexicalIndex(LexicalConfig{Backend: "nope"})
	assert.Error(t, err)
}

func TestMatchExpression_QuotesAndDedupes(t *testing.T) {
	assert.Equal(t, `"cat" OR "dog"`, matchExpression([]string{"cat", "dog", "cat"}))
}
