package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
)

func TestStatusRoundTrip(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteStatus(dir, StatusSnapshot{
		State:     StateIndexing,
		StartedAt: time.Now(),
	}))

	s, err := LoadStatus(dir)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, StateIndexing, s.State)
}

func TestLoadStatusMissingFile(t *testing.T) {
	s, err := LoadStatus(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestIndexDirectoryWritesReadyStatus(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	f.write(t, "calc.go", goFile)

	_, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	s, err := LoadStatus(filepath.Join(f.root, config.DataDirName))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, StateReady, s.State)
	assert.Equal(t, 1, s.FilesIndexed)
	assert.False(t, s.FinishedAt.IsZero())
}
