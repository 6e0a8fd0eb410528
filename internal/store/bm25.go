package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TextTokenizerType runs PrepareTokens: lowercase, split on non
	// letter/digit runes, drop the configured stop words, Porter-stem.
	TextTokenizerType = "rank_text_tokenizer"

	textTokenizerName = "rank_text_tokenizer_configured"
	textAnalyzerName  = "rank_text_analyzer"

	titleField = "title"
	bodyField  = "body"
)

func init() {
	_ = registry.RegisterTokenizer(TextTokenizerType, textTokenizerConstructor)
}

// BleveLexicalIndex implements LexicalIndex with an in-memory Bleve index.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	config LexicalConfig
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveDocument is the document structure stored in Bleve.
type bleveDocument struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewBleveLexicalIndex creates an empty in-memory Bleve index.
func NewBleveLexicalIndex(config LexicalConfig) (*BleveLexicalIndex, error) {
	indexMapping, err := createIndexMapping(config.StopWords)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BleveLexicalIndex{index: idx, config: config}, nil
}

func createIndexMapping(stopWords []string) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	err := indexMapping.AddCustomTokenizer(textTokenizerName, map[string]interface{}{
		"type":       TextTokenizerType,
		"stop_words": stopWords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add tokenizer: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": textTokenizerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = textAnalyzerName
	return indexMapping, nil
}

// Index adds documents in one batch. An existing ID is replaced.
func (b *BleveLexicalIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Title: doc.Title, Body: doc.Text}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search matches the query against title (boosted) and body.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if limit <= 0 || strings.TrimSpace(queryStr) == "" {
		return []Hit{}, nil
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField(titleField)
	titleQuery.SetBoost(b.titleBoost())

	bodyQuery := bleve.NewMatchQuery(queryStr)
	bodyQuery.SetField(bodyField)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQuery, bodyQuery))
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, Hit{DocID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (b *BleveLexicalIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close releases the index. Closing twice is a no-op.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func (b *BleveLexicalIndex) titleBoost() float64 {
	if b.config.TitleBoost <= 0 {
		return 1.0
	}
	return b.config.TitleBoost
}

func textTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	var words []string
	switch v := config["stop_words"].(type) {
	case []string:
		words = v
	case []interface{}:
		for _, w := range v {
			s, ok := w.(string)
			if !ok {
				return nil, fmt.Errorf("stop_words must be strings, got %T", w)
			}
			words = append(words, s)
		}
	case nil:
	default:
		return nil, fmt.Errorf("stop_words must be a list, got %T", v)
	}
	return &textTokenizer{stopWords: BuildStopWordMap(words)}, nil
}

// textTokenizer adapts PrepareTokens to Bleve, so both lexical backends and
// the vector model index the same terms.
type textTokenizer struct {
	stopWords map[string]struct{}
}

// Tokenize implements analysis.Tokenizer.
func (t *textTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := PrepareTokens(string(input), t.stopWords)

	result := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		result = append(result, &analysis.Token{
			Term:     []byte(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}
