package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/errors"
)

// fakeOllama serves /api/embed with deterministic 4-dim vectors and
// counts requests.
func fakeOllama(t *testing.T, calls *atomic.Int64, failures int) *httptest.Server {
	t.Helper()
	var failed atomic.Int64

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		if failed.Add(1) <= int64(failures) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := 1
		if arr, ok := req.Input.([]any); ok {
			n = len(arr)
		}
		out := ollamaEmbedResponse{Embeddings: make([][]float64, n)}
		for i := range out.Embeddings {
			out.Embeddings[i] = []float64{1, 0, 0, 0}
		}
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
}

func newTestOllama(t *testing.T, host string) *OllamaEmbedder {
	t.Helper()
	e, err := NewOllama(context.Background(), OllamaConfig{
		Host:            host,
		Model:           "test-embed",
		Dimensions:      4,
		BatchSize:       2,
		MaxRetries:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOllamaEmbedBatchOrderAndBatching(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 0)
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}
	// Batch size 2 over 3 texts = 2 requests.
	assert.Equal(t, int64(2), calls.Load())
}

func TestOllamaBlankTextGetsZeroVector(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 0)
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	vecs, err := e.EmbedBatch(context.Background(), []string{"   "})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, make([]float32, 4), vecs[0])
	assert.Equal(t, int64(0), calls.Load(), "blank text must not hit the provider")
}

func TestOllamaRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 2)
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, int64(3), calls.Load(), "two failures then success")
}

func TestOllamaGivesUpAfterCap(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 100)
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.GetCode(err))
}

func TestOllamaDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))
}

func TestOllamaRateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := newTestOllama(t, srv.URL)
	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRateLimited, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestDisabledEmbedder(t *testing.T) {
	e := NewDisabled()
	assert.False(t, e.Enabled())
	assert.False(t, e.Available(context.Background()))

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCachedEmbedderShortCircuits(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 0)
	defer srv.Close()

	c := NewCached(newTestOllama(t, srv.URL), 16)

	_, err := c.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	first := calls.Load()

	vecs, err := c.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, first, calls.Load(), "repeat batch must be served from cache")
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls, 0)
	defer srv.Close()

	c := NewCached(newTestOllama(t, srv.URL), 16)

	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	before := calls.Load()

	vecs, err := c.EmbedBatch(context.Background(), []string{"x", "z"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, before+1, calls.Load(), "only the miss goes to the provider")
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
