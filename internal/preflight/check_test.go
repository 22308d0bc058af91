package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/lang"
)

func resultByName(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %q", name)
	return Result{}
}

func TestRunAllHealthyProject(t *testing.T) {
	root := t.TempDir()
	c := New(lang.NewRegistry())

	results := c.RunAll(context.Background(), root)
	require.Len(t, results, 5)
	assert.False(t, HasCriticalFailures(results))

	assert.Equal(t, StatusPass, resultByName(t, results, "config").Status)
	assert.Equal(t, StatusPass, resultByName(t, results, "data_dir").Status)
	assert.Equal(t, StatusPass, resultByName(t, results, "grammars").Status)

	// Default provider is disabled, so no probe happens.
	emb := resultByName(t, results, "embeddings")
	assert.Equal(t, StatusPass, emb.Status)
	assert.Equal(t, "disabled", emb.Detail)
}

func TestRunAllInvalidConfig(t *testing.T) {
	root := t.TempDir()
	bad := "compaction:\n  level: extreme\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, config.ConfigFileName), []byte(bad), 0o644))

	results := New(lang.NewRegistry()).RunAll(context.Background(), root)
	assert.True(t, HasCriticalFailures(results))
	assert.Equal(t, StatusFail, resultByName(t, results, "config").Status)
}

func TestEmbeddingsProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Embeddings.Provider = "ollama"
	cfg.Embeddings.OllamaHost = srv.URL

	r := New(lang.NewRegistry()).checkEmbeddings(context.Background(), cfg)
	assert.Equal(t, StatusPass, r.Status)
}

func TestEmbeddingsProbeUnreachableIsWarning(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Provider = "ollama"
	cfg.Embeddings.OllamaHost = "http://127.0.0.1:1"

	r := New(lang.NewRegistry()).checkEmbeddings(context.Background(), cfg)
	assert.Equal(t, StatusWarn, r.Status)
	assert.False(t, HasCriticalFailures([]Result{r}))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fail", StatusFail.String())
}
