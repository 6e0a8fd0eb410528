package rubric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	// Given: a store with a rubric and an index
	st := NewStore()
	require.NoError(t, st.PutRubric(testRubric()))
	require.NoError(t, st.PutIndex(&Index{
		RubricID:      "quality",
		CorpusID:      "a",
		DocumentCount: 2,
		Failures:      1,
		Scores: map[string]DocScore{
			"a-0": {TotalScore: 0.75, QuestionScores: map[string]float64{"clear": 1, "specific": 0.5}},
			"a-1": {},
		},
	}))
	path := filepath.Join(t.TempDir(), "state", "rubrics.json")

	// When: saved and restored into a new store
	require.NoError(t, SaveSnapshot(path, st.Snapshot()))
	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	restored := NewStore()
	require.NoError(t, restored.Restore(snap))

	// Then: the content matches
	assert.Equal(t, SnapshotVersion, snap.Version)
	r, err := restored.Rubric("quality")
	require.NoError(t, err)
	assert.Equal(t, testRubric().Criteria, r.Criteria)

	idx, ok := restored.Index("quality", "a")
	require.True(t, ok)
	assert.Equal(t, 1, idx.Failures)
	assert.Equal(t, 0.75, idx.Scores["a-0"].TotalScore)
	assert.Equal(t, 0.5, idx.Scores["a-0"].QuestionScores["specific"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSnapshot_Missing(t *testing.T) {
	tests := []struct {
		name string
		path func(dir string) string
	}{
		{name: "missing file", path: func(dir string) string { return filepath.Join(dir, "none.json") }},
		{name: "missing directory", path: func(dir string) string { return filepath.Join(dir, "absent", "none.json") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := tt.path(dir)

			_, err := LoadSnapshot(path)

			assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetCode(err))
			_, statErr := os.Stat(path + ".lock")
			assert.True(t, os.IsNotExist(statErr), "no lock file is left behind")
		})
	}
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err := LoadSnapshot(bad)
	assert.Equal(t, errors.ErrCodeSnapshotCorrupt, errors.GetCode(err))

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 99}`), 0644))
	_, err = LoadSnapshot(future)
	assert.Equal(t, errors.ErrCodeSnapshotCorrupt, errors.GetCode(err))
}

func TestStore_RestoreRejectsOrphanIndex(t *testing.T) {
	snap := &Snapshot{
		Version: SnapshotVersion,
		Indexes: []*Index{{RubricID: "ghost", CorpusID: "a"}},
	}

	err := NewStore().Restore(snap)

	assert.Equal(t, errors.ErrCodeSnapshotCorrupt, errors.GetCode(err))
}
