package store

import (
	"context"
	"math"
	"sort"
)

// SparseVector is a TF-IDF vector keyed by vocabulary index.
// Vectors produced by Transform are L2-normalized, so Similarity is cosine.
type SparseVector map[int]float64

// IsZero reports whether the vector has no non-zero component.
func (v SparseVector) IsZero() bool {
	for _, w := range v {
		if w != 0 {
			return false
		}
	}
	return true
}

// VectorModel is a fitted TF-IDF vocabulary and IDF table.
type VectorModel struct {
	vocab map[string]int
	idf   []float64
	docs  int
}

// NewVectorModel returns an unfitted model. Transform on an unfitted model
// yields zero vectors.
func NewVectorModel() *VectorModel {
	return &VectorModel{vocab: make(map[string]int)}
}

// Fit builds the vocabulary and smoothed IDF table from tokenized documents:
// idf(t) = ln((N+1)/(df(t)+1)) + 1.
func (m *VectorModel) Fit(tokenizedDocs [][]string) {
	vocab := make(map[string]int)
	var df []int

	for _, tokens := range tokenizedDocs {
		seen := make(map[int]struct{}, len(tokens))
		for _, term := range tokens {
			idx, ok := vocab[term]
			if !ok {
				idx = len(df)
				vocab[term] = idx
				df = append(df, 0)
			}
			if _, dup := seen[idx]; !dup {
				seen[idx] = struct{}{}
				df[idx]++
			}
		}
	}

	n := float64(len(tokenizedDocs))
	idf := make([]float64, len(df))
	for i, d := range df {
		idf[i] = math.Log((n+1)/(float64(d)+1)) + 1
	}

	m.vocab = vocab
	m.idf = idf
	m.docs = len(tokenizedDocs)
}

// VocabularySize returns the number of distinct fitted terms.
func (m *VectorModel) VocabularySize() int {
	return len(m.idf)
}

// IDF returns the inverse document frequency of term, or 0 when unknown.
func (m *VectorModel) IDF(term string) float64 {
	if idx, ok := m.vocab[term]; ok {
		return m.idf[idx]
	}
	return 0
}

// Transform projects tokens into an L2-normalized TF-IDF vector with
// tf(t) = count(t)/len(tokens). Out-of-vocabulary terms are ignored.
func (m *VectorModel) Transform(tokens []string) SparseVector {
	vec := make(SparseVector)
	if len(tokens) == 0 {
		return vec
	}

	total := float64(len(tokens))
	for _, term := range tokens {
		if idx, ok := m.vocab[term]; ok {
			vec[idx] += 1 / total
		}
	}

	// Sum in index order so equal documents get bit-identical norms.
	keys := make([]int, 0, len(vec))
	for idx := range vec {
		keys = append(keys, idx)
	}
	sort.Ints(keys)

	var norm float64
	for _, idx := range keys {
		w := vec[idx] * m.idf[idx]
		vec[idx] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
	return vec
}

// Similarity is the dot product of two vectors. Since Transform output is
// unit length, this equals cosine similarity.
func Similarity(a, b SparseVector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	keys := make([]int, 0, len(a))
	for idx := range a {
		keys = append(keys, idx)
	}
	sort.Ints(keys)

	var dot float64
	for _, idx := range keys {
		dot += a[idx] * b[idx]
	}
	return dot
}

// VectorIndex ranks a corpus by TF-IDF similarity to a query.
type VectorIndex struct {
	model   *VectorModel
	ids     []string
	vectors []SparseVector
	ann     *annIndex
}

// VectorOption configures a VectorIndex.
type VectorOption func(*vectorOptions)

type vectorOptions struct {
	annThreshold  int
	annOversample int
	annDims       int
	annBudget     int
}

// WithANN enables candidate generation for corpora larger than threshold
// documents. Zero disables it. Rankings equal the exact scan unless a query's
// terms are common enough to exceed the postings budget, in which case the
// HNSW graph supplies approximate candidates.
func WithANN(threshold, oversample int) VectorOption {
	return func(o *vectorOptions) {
		o.annThreshold = threshold
		if oversample > 0 {
			o.annOversample = oversample
		}
	}
}

// NewVectorIndex fits a model on docs and projects every document.
func NewVectorIndex(docs []Document, opts ...VectorOption) (*VectorIndex, error) {
	o := vectorOptions{annOversample: 4, annDims: defaultANNDims, annBudget: defaultPostingsBudget}
	for _, opt := range opts {
		opt(&o)
	}

	tokenized := make([][]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		tokenized[i] = Prepare(documentText(d))
		ids[i] = d.ID
	}

	model := NewVectorModel()
	model.Fit(tokenized)

	vectors := make([]SparseVector, len(docs))
	for i, tokens := range tokenized {
		vectors[i] = model.Transform(tokens)
	}

	idx := &VectorIndex{model: model, ids: ids, vectors: vectors}

	if o.annThreshold > 0 && len(docs) > o.annThreshold {
		ann, err := newANNIndex(vectors, o.annDims, o.annOversample, o.annBudget)
		if err != nil {
			return nil, err
		}
		idx.ann = ann
	}

	return idx, nil
}

// Model returns the fitted model.
func (v *VectorIndex) Model() *VectorModel {
	return v.model
}

// Count returns the number of indexed documents.
func (v *VectorIndex) Count() int {
	return len(v.ids)
}

// Search ranks documents by similarity to query, highest first. Ties keep
// corpus order. Documents with zero similarity are ranked last, not dropped.
func (v *VectorIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(v.ids) == 0 {
		return []Hit{}, nil
	}

	q := v.model.Transform(Prepare(query))

	type scored struct {
		pos   int
		score float64
	}

	var candidates []scored
	complete := true
	if v.ann != nil && !q.IsZero() {
		var positions []int
		positions, complete = v.ann.candidates(q, limit)
		for _, pos := range positions {
			// Zero-similarity documents come from the corpus-order fill.
			if score := Similarity(q, v.vectors[pos]); score > 0 {
				candidates = append(candidates, scored{pos: pos, score: score})
			}
		}
	} else {
		candidates = make([]scored, len(v.vectors))
		for i, vec := range v.vectors {
			candidates[i] = scored{pos: i, score: Similarity(q, vec)}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	hits := make([]Hit, 0, min(limit, len(v.ids)))
	taken := make(map[int]struct{}, limit)
	for _, c := range candidates {
		if len(hits) == limit {
			break
		}
		hits = append(hits, Hit{DocID: v.ids[c.pos], Score: c.score})
		taken[c.pos] = struct{}{}
	}

	// Fill with the remaining documents in corpus order. Their similarity
	// is zero unless the candidate set was incomplete.
	for pos := 0; len(hits) < limit && pos < len(v.ids); pos++ {
		if _, ok := taken[pos]; ok {
			continue
		}
		hits = append(hits, Hit{DocID: v.ids[pos], Score: Similarity(q, v.vectors[pos])})
	}
	if !complete {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	}

	return hits, nil
}

// documentText is the representation both engines index: title then body.
func documentText(d Document) string {
	if d.Title == "" {
		return d.Text
	}
	return d.Title + "\n" + d.Text
}

var _ Searcher = (*VectorIndex)(nil)
