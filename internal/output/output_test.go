package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/search"
)

func TestStatusLines(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Success("indexed 12 files")
	w.Warning("2 files skipped")
	w.Error("index locked")
	w.Field("chunks", 48)

	out := buf.String()
	assert.Contains(t, out, "✓ indexed 12 files")
	assert.Contains(t, out, "! 2 files skipped")
	assert.Contains(t, out, "✗ index locked")
	assert.Contains(t, out, "chunks:")
	assert.Contains(t, out, "48")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	require.NoError(t, w.JSON(map[string]int{"documents": 3}))
	assert.JSONEq(t, `{"documents": 3}`, buf.String())
}

func TestSearchResultsRendering(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.SearchResults([]search.Result{
		{
			Chunk: &chunk.CodeChunk{
				Name:          "ParseConfig",
				Level:         chunk.LevelFunction,
				Language:      "go",
				CompactedText: "func ParseConfig(path string) (*Config, error)",
				Location:      chunk.Location{Path: "internal/config/config.go", StartLine: 10, EndLine: 30},
			},
			FinalScore: 0.42,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "ParseConfig")
	assert.Contains(t, out, "internal/config/config.go:10-30")
	assert.Contains(t, out, "score=0.4200")
	assert.Contains(t, out, "func ParseConfig")
}

func TestSearchResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).SearchResults(nil)
	assert.Contains(t, buf.String(), "no results")
}

func TestSnippetTruncation(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.snippet("a\nb\nc\nd\ne\nf\ng\nh", 3)
	out := buf.String()
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, "   d\n")
	assert.Contains(t, out, "...")
}
