// Package store provides the per-corpus retrieval engines: a lexical BM25
// index with pluggable backends and a TF-IDF vector space model, both built
// on one shared text-preparation pipeline.
package store

import (
	"context"
	"errors"
	"strings"
)

// Document is a single searchable unit. Identity is ID.
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Text  string `json:"text" yaml:"text"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsBlank reports whether the document has no scoreable text.
func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Corpus is an ordered document collection. Indexes built from a corpus are
// keyed by its ID and are never mutated in place.
type Corpus struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Documents []Document `json:"documents" yaml:"documents"`
	Ready     bool       `json:"ready" yaml:"ready"`
}

// Hit is a ranked search result. The score scale depends on the engine that
// produced it: BM25 magnitude, cosine similarity, or an RRF sum.
type Hit struct {
	DocID string  `json:"id"`
	Score float64 `json:"score"`
}

// Searcher is the contract shared by the lexical and vector engines.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// LexicalIndex is a BM25-style keyword index over title and body.
type LexicalIndex interface {
	Searcher

	// Index adds documents. Re-indexing an existing ID replaces it.
	Index(ctx context.Context, docs []Document) error

	// Count returns the number of indexed documents.
	Count() int

	// Close releases index resources.
	Close() error
}

// LexicalConfig configures a lexical index.
type LexicalConfig struct {
	// Backend selects the implementation: "sqlite" (default) or "bleve".
	Backend string

	// TitleBoost is the weight of title matches relative to body matches.
	TitleBoost float64

	// StopWords overrides the default stop word list when non-nil.
	StopWords []string
}

// DefaultLexicalConfig returns the default lexical configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		Backend:    string(BackendSQLite),
		TitleBoost: 2.0,
	}
}

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index is closed")
