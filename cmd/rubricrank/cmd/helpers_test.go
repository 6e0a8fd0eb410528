package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const petsCorpus = `{"id": "pets", "name": "Pets", "documents": [
  {"id": "p1", "title": "Cats", "text": "Cats are independent animals.\nThey sleep most of the day."},
  {"id": "p2", "title": "Dogs", "text": "Dogs are loyal animals that love long walks in the park."},
  {"id": "p3", "text": "A short note on cats and their whiskers."}
]}`

const plantsCorpus = `[
  {"id": "g1", "text": "Ferns grow in shade and need moist soil."},
  {"id": "g2", "text": "Cacti need little water and lots of sun."}
]`

const qualityRubric = `id: quality
name: Quality
criteria:
  - label: animals
    question: Does the text describe animals?
  - label: habits
    question: Does the text mention daily habits like sleep or walks?
`

// project is a temporary rubricrank project with isolated user config,
// snapshot and offline scorer.
type project struct {
	dir      string
	snapshot string
}

func newProject(t *testing.T, corpora map[string]string) *project {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("RUBRICRANK_SCORER", "static")

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "indexes.json")
	t.Setenv("RUBRICRANK_SNAPSHOT", snapshot)

	writeTestFile(t, filepath.Join(dir, "rubrics", "quality.yaml"), qualityRubric)
	for name, content := range corpora {
		writeTestFile(t, filepath.Join(dir, "corpora", name), content)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "corpora"), 0755))

	return &project{dir: dir, snapshot: snapshot}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// run executes the root command in the project and returns stdout.
func (p *project) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--dir", p.dir))
	err := cmd.Execute()
	return buf.String(), err
}
