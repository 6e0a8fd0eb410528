package store

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/coder/hnsw"
)

const (
	// defaultANNDims is the width of the hashed projection fed to the graph.
	defaultANNDims = 256

	// defaultPostingsBudget bounds how many postings entries one query may
	// expand before the graph takes over.
	defaultPostingsBudget = 4096

	annEfSearch = 128
)

// annIndex proposes candidates for a query. It walks term postings first,
// rarest term first. A document with positive similarity shares at least one
// term with the query, so while the postings fit the budget the candidate set
// is complete and the ranking equals the exact scan. Past the budget, an HNSW
// graph over feature-hashed vectors adds approximate neighbours. VectorIndex
// re-scores every candidate exactly, so approximation affects recall, never
// scores.
type annIndex struct {
	graph      *hnsw.Graph[uint64]
	postings   map[int][]int
	dims       int
	oversample int
	budget     int
}

func newANNIndex(vectors []SparseVector, dims, oversample, budget int) (*annIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("ann dimensions must be positive, got %d", dims)
	}
	if budget <= 0 {
		budget = defaultPostingsBudget
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = annEfSearch
	graph.Ml = 0.25

	a := &annIndex{
		graph:      graph,
		postings:   make(map[int][]int),
		dims:       dims,
		oversample: oversample,
		budget:     budget,
	}
	for pos, vec := range vectors {
		for idx, w := range vec {
			if w != 0 {
				a.postings[idx] = append(a.postings[idx], pos)
			}
		}

		dense := a.project(vec)
		// Zero vectors have no cosine direction; they surface through
		// the corpus-order fill in VectorIndex.Search instead.
		if dense == nil {
			continue
		}
		graph.Add(hnsw.MakeNode(uint64(pos), dense))
	}

	return a, nil
}

// candidates returns corpus positions of likely neighbours of q. complete
// reports that every document with positive similarity is included.
func (a *annIndex) candidates(q SparseVector, limit int) (out []int, complete bool) {
	terms := make([]int, 0, len(q))
	for idx, w := range q {
		if w != 0 {
			terms = append(terms, idx)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		li, lj := len(a.postings[terms[i]]), len(a.postings[terms[j]])
		if li != lj {
			return li < lj
		}
		return terms[i] < terms[j]
	})

	seen := make(map[int]struct{})
	scanned := 0
	complete = true
	for _, idx := range terms {
		list := a.postings[idx]
		if scanned+len(list) > a.budget {
			complete = false
			break
		}
		scanned += len(list)
		for _, pos := range list {
			if _, dup := seen[pos]; !dup {
				seen[pos] = struct{}{}
				out = append(out, pos)
			}
		}
	}
	if complete {
		return out, true
	}

	dense := a.project(q)
	if dense == nil || a.graph.Len() == 0 {
		return out, false
	}

	k := max(limit*a.oversample, limit)
	for _, node := range a.graph.Search(dense, k) {
		pos := int(node.Key)
		if _, dup := seen[pos]; !dup {
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	return out, false
}

// project feature-hashes a sparse vector into a unit-length dense vector.
// Returns nil for the zero vector.
func (a *annIndex) project(vec SparseVector) []float32 {
	dense := make([]float32, a.dims)
	var nonZero bool
	for idx, w := range vec {
		if w == 0 {
			continue
		}
		bucket, sign := hashFeature(idx, a.dims)
		dense[bucket] += float32(sign * w)
		nonZero = true
	}
	if !nonZero {
		return nil
	}
	if !normalizeVectorInPlace(dense) {
		return nil
	}
	return dense
}

// hashFeature maps a vocabulary index to a bucket and a ±1 sign.
func hashFeature(idx, dims int) (int, float64) {
	h := fnv.New64a()
	var buf [8]byte
	v := uint64(idx)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(dims)), sign
}

// normalizeVectorInPlace scales v to unit length. It reports false when v is
// all zeros (hash collisions can cancel every component).
func normalizeVectorInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}
