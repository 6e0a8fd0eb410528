// Package search runs keyword, semantic and hybrid retrieval over per-corpus
// engines, normalizes their scores and optionally reranks results against a
// rubric.
package search

import (
	"sort"

	"github.com/Aman-CERP/rubricrank/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// Fuse combines two ranked lists with Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ 1 / (k + rank_i(d))
//
// Where:
//   - k = smoothing constant (k <= 0 selects DefaultRRFConstant)
//   - rank_i = 1-based position of d in list i
//
// A document present in only one list still gets that list's contribution.
// Ties keep first appearance, scanning a then b.
func Fuse(a, b []store.Hit, k int) []store.Hit {
	return FuseAll(k, a, b)
}

// FuseAll is Fuse over any number of lists.
func FuseAll(k int, lists ...[]store.Hit) []store.Hit {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	capacity := 0
	for _, l := range lists {
		capacity += len(l)
	}

	scores := make(map[string]float64, capacity)
	order := make([]string, 0, capacity)

	for _, list := range lists {
		// A document listed twice in one list counts at its best rank only.
		seen := make(map[string]struct{}, len(list))
		for rank, hit := range list {
			if _, dup := seen[hit.DocID]; dup {
				continue
			}
			seen[hit.DocID] = struct{}{}

			if _, ok := scores[hit.DocID]; !ok {
				order = append(order, hit.DocID)
			}
			scores[hit.DocID] += 1 / float64(k+rank+1)
		}
	}

	fused := make([]store.Hit, len(order))
	for i, id := range order {
		fused[i] = store.Hit{DocID: id, Score: scores[id]}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	return fused
}
