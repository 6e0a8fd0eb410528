package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		CorpusDir:    "/data/corpora",
		SnapshotPath: "/data/indexes.json",
		SnapshotSize: 2048,
		Scorer:       "pi",
		Corpora: []CorpusStatus{
			{ID: "papers", Name: "Papers", Documents: 120},
		},
		Rubrics: []RubricStatus{
			{
				ID: "quality", Name: "Quality", Criteria: 3,
				Indexes: []IndexStatus{{CorpusID: "papers", Documents: 120, Failures: 2, CreatedAt: time.Now()}},
			},
			{ID: "tone", Name: "Tone", Criteria: 1},
		},
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a status renderer without color
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(sampleStatus()))

	// Then: corpora, rubrics and indexes are listed
	out := buf.String()
	assert.Contains(t, out, "/data/corpora")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "Corpora (1)")
	assert.Contains(t, out, "papers")
	assert.Contains(t, out, "Quality, 3 criteria")
	assert.Contains(t, out, "2 failed")
	assert.Contains(t, out, "just now")
	assert.Contains(t, out, "not indexed")
}

func TestStatusRenderer_RenderNoCorpora(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{}))

	assert.Contains(t, buf.String(), "none loaded")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(sampleStatus()))

	var decoded StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "quality", decoded.Rubrics[0].ID)
	assert.Equal(t, 2, decoded.Rubrics[0].Indexes[0].Failures)
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"seconds", now.Add(-10 * time.Second), "just now"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"days", now.Add(-50 * time.Hour), "2 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.in))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "3.0 MB", FormatBytes(3*1024*1024))
	assert.Equal(t, "1.0 GB", FormatBytes(1024*1024*1024))
}
