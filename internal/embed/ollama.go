package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codescope/codescope/internal/errors"
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int

	// SkipHealthCheck skips startup connectivity probing. Test use only.
	SkipHealthCheck bool
}

// ollamaEmbedRequest is the /api/embed request body. Input is a string
// for single texts and a string array for batches.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaModelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings via Ollama's HTTP API.
type OllamaEmbedder struct {
	client *http.Client
	cfg    OllamaConfig

	mu       sync.Mutex
	closed   bool
	lastCall time.Time
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllama creates an Ollama embedder and, unless skipped, verifies the
// host is reachable and the model is pulled.
func NewOllama(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	e := &OllamaEmbedder{
		// No client-level timeout: per-request contexts carry the
		// warm/cold deadline and must not be overridden.
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     10 * time.Second,
		}},
		cfg: cfg,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, DefaultColdTimeout)
		defer cancel()
		if err := e.checkModel(checkCtx); err != nil {
			return nil, err
		}
		if cfg.Dimensions == 0 {
			dims, err := e.detectDimensions(checkCtx)
			if err != nil {
				return nil, err
			}
			e.cfg.Dimensions = dims
		}
	}
	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "no embedding returned", nil)
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts in order, splitting into
// provider-sized batches. Blank texts embed to zero vectors without a
// provider call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "embedder is closed", nil)
	}

	results := make([][]float32, len(texts))
	var pending []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			results[i] = make([]float32, e.cfg.Dimensions)
		} else {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		batchTexts := make([]string, len(batch))
		for i, idx := range batch {
			batchTexts[i] = texts[idx]
		}

		vecs, err := e.embedWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, errors.New(errors.ErrCodeProviderUnavailable,
				fmt.Sprintf("provider returned %d vectors for %d texts", len(vecs), len(batch)), nil)
		}
		for i, v := range vecs {
			results[batch[i]] = v
		}
	}
	return results, nil
}

// embedWithRetry runs one provider call with exponential backoff on
// transient failures, up to the configured attempt cap.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := errors.RetryConfig{
		MaxRetries:   e.cfg.MaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}

	var vecs [][]float32
	err := errors.Retry(ctx, cfg, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout())
		defer cancel()

		var err error
		vecs, err = e.doEmbed(reqCtx, texts)
		if err != nil {
			slog.Debug("embedding attempt failed",
				"model", e.cfg.Model,
				"texts", len(texts),
				"error", err)
			return err
		}
		e.mu.Lock()
		e.lastCall = time.Now()
		e.mu.Unlock()
		return nil
	})
	return vecs, err
}

// requestTimeout picks the cold timeout when the model has likely been
// unloaded, the warm timeout otherwise.
func (e *OllamaEmbedder) requestTimeout() time.Duration {
	e.mu.Lock()
	last := e.lastCall
	e.mu.Unlock()

	if last.IsZero() || time.Since(last) > modelUnloadThreshold {
		return DefaultColdTimeout
	}
	return DefaultWarmTimeout
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeEmbedTimeout, "embedding request timed out", err)
		}
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.ErrCodeRateLimited, "provider rate limited", nil)
	case resp.StatusCode >= 500:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrCodeProviderUnavailable,
			fmt.Sprintf("provider error %d: %s", resp.StatusCode, respBody), nil)
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, respBody), nil)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "decode embed response", err)
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if e.cfg.Dimensions > 0 && len(emb) != e.cfg.Dimensions {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("provider returned %d dimensions, want %d", len(emb), e.cfg.Dimensions), nil)
		}
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		vecs[i] = Normalize(v)
	}
	return vecs, nil
}

// checkModel verifies the configured model is present on the host.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	models, err := e.listModels(ctx)
	if err != nil {
		return err
	}

	want := strings.ToLower(e.cfg.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return nil
		}
	}
	return errors.New(errors.ErrCodeProviderUnavailable,
		fmt.Sprintf("model %q not found on %s", e.cfg.Model, e.cfg.Host), nil)
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "build tags request", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "cannot reach Ollama", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeProviderUnavailable,
			fmt.Sprintf("tags request returned %d", resp.StatusCode), nil)
	}

	var list ollamaModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "decode tags response", err)
	}

	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	vecs, err := e.doEmbed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, errors.New(errors.ErrCodeProviderUnavailable, "empty embedding returned", nil)
	}
	return len(vecs[0]), nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

// Enabled reports that this embedder produces vectors.
func (e *OllamaEmbedder) Enabled() bool { return true }

// Available checks whether the host answers and the model exists.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	return e.checkModel(ctx) == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
