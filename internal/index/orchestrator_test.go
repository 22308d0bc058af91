package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/parse"
	"github.com/codescope/codescope/internal/store"
)

type fixture struct {
	root  string
	orch  *Orchestrator
	store *store.Store
}

func newFixture(t *testing.T, workers int, embedder embed.Embedder) *fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Indexing.Workers = workers

	dims := 0
	if embedder.Enabled() {
		dims = embedder.Dimensions()
	}
	st, err := store.Open(context.Background(), store.Options{
		Dir:              filepath.Join(root, config.DataDirName),
		VectorDimensions: dims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	langs := lang.NewRegistry()
	pool := parse.NewPool(workers, 10*time.Second)
	t.Cleanup(pool.Close)
	cache := parse.NewCache(pool, 16*1024*1024)

	orch, err := New(root, cfg, langs, cache, embedder, st, nil)
	require.NoError(t, err)
	return &fixture{root: root, orch: orch, store: st}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const goFile = `package calc

// Add returns the sum of two ints.
func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`

func TestIndexDirectoryIndexesSupportedFiles(t *testing.T) {
	f := newFixture(t, 2, embed.NewDisabled())
	f.write(t, "calc.go", goFile)
	f.write(t, "util.py", "def greet(name):\n    return 'hi ' + name\n")
	f.write(t, "notes.txt", "not source\n")

	stats, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Empty(t, stats.Errors)
	assert.Greater(t, stats.Chunks, 2)

	assert.NotEmpty(t, f.store.SymbolLookup("Add"))
	assert.NotEmpty(t, f.store.SymbolLookup("greet"))
}

func TestIndexDirectorySkipsUnchangedFiles(t *testing.T) {
	f := newFixture(t, 2, embed.NewDisabled())
	f.write(t, "calc.go", goFile)

	_, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	stats, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestIndexDirectoryReindexesChangedFile(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	f.write(t, "calc.go", goFile)

	_, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, f.store.SymbolLookup("Sub"))

	f.write(t, "calc.go", "package calc\n\nfunc Mul(a, b int) int {\n\treturn a * b\n}\n")
	stats, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	// No stale chunks survive the re-index.
	assert.Empty(t, f.store.SymbolLookup("Sub"))
	assert.NotEmpty(t, f.store.SymbolLookup("Mul"))
}

func TestIndexDirectoryRemovesDeletedFiles(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	f.write(t, "calc.go", goFile)
	f.write(t, "other.go", "package calc\n\nfunc Keep() {}\n")

	_, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "calc.go")))
	stats, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesRemoved)
	assert.Empty(t, f.store.SymbolLookup("Add"))
	assert.NotEmpty(t, f.store.SymbolLookup("Keep"))
}

func chunkIDsByPath(s *store.Store, path string) []string {
	var ids []string
	for _, d := range s.GetByPath(path) {
		ids = append(ids, d.Chunk.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestIndexingIsDeterministicAcrossWorkerCounts(t *testing.T) {
	write := func(f *fixture) {
		f.write(t, "a.go", goFile)
		f.write(t, "b.py", "class Widget:\n    def render(self):\n        return ''\n")
		f.write(t, "c.ts", "export function render(): string { return '' }\n")
	}

	one := newFixture(t, 1, embed.NewDisabled())
	write(one)
	_, err := one.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	many := newFixture(t, 8, embed.NewDisabled())
	write(many)
	_, err = many.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	for _, path := range []string{"a.go", "b.py", "c.ts"} {
		assert.Equal(t, chunkIDsByPath(one.store, path), chunkIDsByPath(many.store, path), path)

		oneDocs := one.store.GetByPath(path)
		manyDocs := many.store.GetByPath(path)
		require.Equal(t, len(oneDocs), len(manyDocs))
		byID := make(map[string]string)
		for _, d := range manyDocs {
			byID[d.Chunk.ID] = d.Chunk.CompactedText
		}
		for _, d := range oneDocs {
			assert.Equal(t, d.Chunk.CompactedText, byID[d.Chunk.ID], "compacted text identical per chunk")
		}
	}
}

func TestIndexFileErrorsAreIsolated(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	err := f.orch.IndexFile(context.Background(), "missing.go")
	require.Error(t, err)
}

func TestRemoveFileIsIdempotent(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	f.write(t, "calc.go", goFile)
	_, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.orch.RemoveFile(context.Background(), "calc.go"))
	require.NoError(t, f.orch.RemoveFile(context.Background(), "calc.go"))
	assert.Empty(t, f.store.GetByPath("calc.go"))
}

// MockEmbedder returns deterministic vectors without a provider.
type MockEmbedder struct {
	dims  int
	calls int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, m.dims)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int                { return m.dims }
func (m *MockEmbedder) ModelName() string              { return "mock" }
func (m *MockEmbedder) Enabled() bool                  { return true }
func (m *MockEmbedder) Available(context.Context) bool { return true }
func (m *MockEmbedder) Close() error                   { return nil }

func TestIndexDirectoryEmbedsChunks(t *testing.T) {
	emb := &MockEmbedder{dims: 4}
	f := newFixture(t, 1, emb)
	f.write(t, "calc.go", goFile)

	stats, err := f.orch.IndexDirectory(context.Background())
	require.NoError(t, err)

	assert.Greater(t, stats.Embedded, 0)
	assert.Equal(t, stats.Embedded, f.store.Stats().Vectors)

	hits, err := f.store.SimilaritySearch([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIndexDirectoryCancellationStopsScheduling(t *testing.T) {
	f := newFixture(t, 1, embed.NewDisabled())
	for i := 0; i < 5; i++ {
		f.write(t, filepath.Join("pkg", string(rune('a'+i))+".go"), goFile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := f.orch.IndexDirectory(ctx)
	require.Error(t, err)
	if stats != nil {
		assert.Equal(t, 0, stats.FilesIndexed, "no files applied after cancellation")
		assert.Equal(t, 0, stats.FilesRemoved, "no deletions applied after cancellation")
	}
}
