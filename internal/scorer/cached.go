package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

// DefaultCacheSize is the number of scores kept by CachedScorer.
const DefaultCacheSize = 1024

// CachedScorer wraps a Scorer with an LRU cache keyed by query, text and
// criteria. Failed calls are not cached.
type CachedScorer struct {
	inner rubric.Scorer
	cache *lru.Cache[string, rubric.DocScore]
}

var _ rubric.Scorer = (*CachedScorer)(nil)

// NewCachedScorer creates a cache of size entries around inner.
func NewCachedScorer(inner rubric.Scorer, size int) *CachedScorer {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, rubric.DocScore](size)
	return &CachedScorer{inner: inner, cache: cache}
}

// cacheKey hashes the inputs. Criteria are sorted by label so reordering a
// rubric does not miss the cache.
func cacheKey(query, text string, criteria []rubric.Criterion) string {
	sorted := make([]rubric.Criterion, len(criteria))
	copy(sorted, criteria)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(text))
	for _, c := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(c.Label))
		h.Write([]byte{1})
		h.Write([]byte(c.Question))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Score returns a cached score when available.
func (c *CachedScorer) Score(ctx context.Context, query, text string, criteria []rubric.Criterion) (rubric.DocScore, error) {
	key := cacheKey(query, text, criteria)
	if s, ok := c.cache.Get(key); ok {
		return s, nil
	}

	s, err := c.inner.Score(ctx, query, text, criteria)
	if err != nil {
		return rubric.DocScore{}, err
	}
	c.cache.Add(key, s)
	return s, nil
}

// Len returns the number of cached scores.
func (c *CachedScorer) Len() int {
	return c.cache.Len()
}

// Inner returns the wrapped scorer.
func (c *CachedScorer) Inner() rubric.Scorer {
	return c.inner
}
