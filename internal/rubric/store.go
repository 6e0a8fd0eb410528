package rubric

import (
	"sort"
	"sync"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// Store holds rubric definitions and their finished indexes in memory.
// Indexes are immutable, so readers share them without copying.
type Store struct {
	mu      sync.RWMutex
	rubrics map[string]*Rubric
	indexes map[string]*Index
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rubrics: make(map[string]*Rubric),
		indexes: make(map[string]*Index),
	}
}

// PutRubric validates and stores r, replacing any rubric with the same id.
// Indexes of a replaced rubric are dropped since they no longer match its
// criteria.
func (s *Store) PutRubric(r *Rubric) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.rubrics[r.ID]; ok && !sameCriteria(old, r) {
		for key, idx := range s.indexes {
			if idx.RubricID == r.ID {
				delete(s.indexes, key)
			}
		}
	}
	s.rubrics[r.ID] = r
	return nil
}

// Rubric returns the rubric with id.
func (s *Store) Rubric(id string) (*Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rubrics[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRubricNotFound, "rubric %q not found", id).
			WithDetail("rubric_id", id)
	}
	return r, nil
}

// Rubrics returns every rubric ordered by id.
func (s *Store) Rubrics() []*Rubric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rubric, 0, len(s.rubrics))
	for _, r := range s.rubrics {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutIndex stores a finished index, replacing any earlier one for the same
// rubric and corpus.
func (s *Store) PutIndex(index *Index) error {
	if index == nil || index.RubricID == "" || index.CorpusID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "index needs a rubric id and a corpus id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[index.Key()] = index
	return nil
}

// Index returns the index for rubricID over corpusID.
func (s *Store) Index(rubricID, corpusID string) (*Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[indexKey(rubricID, corpusID)]
	return idx, ok
}

// Indexes returns every index ordered by rubric then corpus.
func (s *Store) Indexes() []*Index {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// DropCorpus removes every index built over corpusID. Used when a corpus is
// reloaded with different documents.
func (s *Store) DropCorpus(corpusID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, idx := range s.indexes {
		if idx.CorpusID == corpusID {
			delete(s.indexes, key)
			n++
		}
	}
	return n
}

func sameCriteria(a, b *Rubric) bool {
	if len(a.Criteria) != len(b.Criteria) {
		return false
	}
	want := make(map[Criterion]struct{}, len(a.Criteria))
	for _, c := range a.Criteria {
		want[c] = struct{}{}
	}
	for _, c := range b.Criteria {
		if _, ok := want[c]; !ok {
			return false
		}
	}
	return true
}
