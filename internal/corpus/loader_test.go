package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile_JSONArray(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pets.json", `[
  {"id": "cat", "text": "cats are great", "title": "Cats"},
  {"text": "dogs are great", "url": "https://example.com/dogs"}
]`)

	c, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, "pets", c.ID)
	assert.Equal(t, "pets", c.Name)
	assert.True(t, c.Ready)
	require.Len(t, c.Documents, 2)
	assert.Equal(t, "cat", c.Documents[0].ID)
	assert.Equal(t, "Cats", c.Documents[0].Title)
	assert.Equal(t, "pets-1", c.Documents[1].ID)
	assert.Equal(t, "https://example.com/dogs", c.Documents[1].URL)
}

func TestLoadFile_JSONObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "file.json",
		`{"id": "news", "name": "News", "documents": [{"text": "headline"}]}`)

	c, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, "news", c.ID)
	assert.Equal(t, "News", c.Name)
	assert.Equal(t, "news-0", c.Documents[0].ID)
}

func TestLoadFile_JSONLSkipsBadLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lines.jsonl",
		"{\"id\": \"a\", \"text\": \"first\"}\n\nnot json\n{\"text\": \"third\"}\n")

	c, err := LoadFile(path)

	require.NoError(t, err)
	require.Len(t, c.Documents, 2)
	assert.Equal(t, "a", c.Documents[0].ID)
	assert.Equal(t, "lines-1", c.Documents[1].ID)
	assert.Equal(t, "third", c.Documents[1].Text)
}

func TestLoadFile_TextSplitsParagraphs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "first paragraph\nstill first\r\n\r\nsecond\n\n\n\n")

	c, err := LoadFile(path)

	require.NoError(t, err)
	require.Len(t, c.Documents, 2)
	assert.Equal(t, "first paragraph\nstill first", c.Documents[0].Text)
	assert.Equal(t, "notes-1", c.Documents[1].ID)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "none.json"), errors.ErrCodeFileNotFound},
		{"bad json", writeFile(t, dir, "bad.json", "{"), errors.ErrCodeCorpusInvalid},
		{"empty array", writeFile(t, dir, "empty.json", "[]"), errors.ErrCodeCorpusInvalid},
		{"blank text file", writeFile(t, dir, "blank.txt", "\n\n"), errors.ErrCodeCorpusInvalid},
		{"unsupported", writeFile(t, dir, "data.csv", "a,b"), errors.ErrCodeCorpusInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestLoadDir(t *testing.T) {
	// Given: two corpora plus files that are not corpora
	dir := t.TempDir()
	writeFile(t, dir, "zoo.jsonl", `{"text": "lion"}`)
	writeFile(t, dir, "alpha.txt", "one\n\ntwo")
	writeFile(t, dir, "README.md", "# ignore")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	// When: loading the directory
	corpora, err := LoadDir(dir)

	// Then: both corpora load, sorted by id
	require.NoError(t, err)
	require.Len(t, corpora, 2)
	assert.Equal(t, "alpha", corpora[0].ID)
	assert.Equal(t, "zoo", corpora[1].ID)
}

func TestLoadDir_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"id": "same", "documents": [{"text": "x"}]}`)
	writeFile(t, dir, "b.json", `{"id": "same", "documents": [{"text": "y"}]}`)

	_, err := LoadDir(dir)

	assert.Equal(t, errors.ErrCodeCorpusInvalid, errors.GetCode(err))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x.JSON"))
	assert.True(t, Supported("/a/b.jsonl"))
	assert.True(t, Supported("c.txt"))
	assert.False(t, Supported("d.yaml"))
	assert.Equal(t, "news", IDFromPath("/tmp/news.jsonl"))
}
