package embed

import (
	"context"
	"fmt"

	"github.com/codescope/codescope/internal/config"
)

// NewFromConfig builds the configured embedder, wrapped in the LRU
// cache. Provider "disabled" yields the disabled embedder.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "disabled", "":
		return NewDisabled(), nil
	case "ollama":
		inner, err := NewOllama(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return NewCached(inner, cfg.CacheSize), nil
	}
	return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
}
