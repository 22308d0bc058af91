package embed

import "context"

// DisabledEmbedder is the no-provider mode. Indexing stores chunks
// without vectors and retrieval runs on the symbol and full-text layers
// alone.
type DisabledEmbedder struct{}

var _ Embedder = (*DisabledEmbedder)(nil)

// NewDisabled returns the disabled embedder.
func NewDisabled() *DisabledEmbedder {
	return &DisabledEmbedder{}
}

func (*DisabledEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrDisabled
}

func (*DisabledEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrDisabled
}

func (*DisabledEmbedder) Dimensions() int { return 0 }

func (*DisabledEmbedder) ModelName() string { return "disabled" }

func (*DisabledEmbedder) Enabled() bool { return false }

func (*DisabledEmbedder) Available(context.Context) bool { return false }

func (*DisabledEmbedder) Close() error { return nil }
