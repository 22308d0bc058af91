// Package codescope is the embeddable entry point to the index: it
// assembles the pipeline components for a project root and exposes
// indexing, search, and watching as one object.
package codescope

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/parse"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/telemetry"
	"github.com/codescope/codescope/internal/watcher"
)

// Project is an opened codescope index over one source tree.
type Project struct {
	Root   string
	Config *config.Config

	langs    *lang.Registry
	pool     *parse.Pool
	cache    *parse.Cache
	embedder embed.Embedder
	store    *store.Store
	orch     *index.Orchestrator
	engine   *search.Engine
	metrics  *telemetry.Recorder
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Options tunes Open beyond the on-disk configuration.
type Options struct {
	Logger *slog.Logger

	// DisableEmbeddings overrides the configured provider, for
	// environments where the provider is known to be unreachable.
	DisableEmbeddings bool
}

// Open loads the project configuration and assembles the pipeline.
// The returned Project must be closed.
func Open(ctx context.Context, root string, opts Options) (*Project, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	embCfg := cfg.Embeddings
	if opts.DisableEmbeddings {
		embCfg.Provider = "disabled"
	}
	embedder, err := embed.NewFromConfig(ctx, embCfg)
	if err != nil {
		log.Warn("embedding provider unavailable, continuing without vectors", "error", err)
		embedder = embed.NewDisabled()
	}

	dims := 0
	if embedder.Enabled() {
		dims = embedder.Dimensions()
	}
	st, err := store.Open(ctx, store.Options{
		Dir:              config.DataDir(root),
		VectorDimensions: dims,
		Logger:           log,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	langs := lang.NewRegistry()
	pool := parse.NewPool(cfg.Indexing.Workers, cfg.ParseTimeoutDuration())
	cache := parse.NewCache(pool, cfg.Indexing.AstCacheBytes)

	orch, err := index.New(root, cfg, langs, cache, embedder, st, log)
	if err != nil {
		_ = st.Close()
		_ = embedder.Close()
		pool.Close()
		return nil, err
	}

	engine := search.NewEngine(st, embedder, langs, search.Config{
		RRFConstant: cfg.Search.RRFConstant,
		Logger:      log,
	})

	return &Project{
		Root:     root,
		Config:   cfg,
		langs:    langs,
		pool:     pool,
		cache:    cache,
		embedder: embedder,
		store:    st,
		orch:     orch,
		engine:   engine,
		metrics:  telemetry.Load(config.DataDir(root)),
		log:      log,
	}, nil
}

// Index walks the tree and brings the index up to date.
func (p *Project) Index(ctx context.Context) (*index.IndexStats, error) {
	return p.orch.IndexDirectory(ctx)
}

// Search runs a query against the index and records local query
// statistics.
func (p *Project) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	start := time.Now()
	results, err := p.engine.Search(ctx, q)
	if err == nil {
		p.metrics.Record(q.Text, time.Since(start), len(results))
	}
	return results, err
}

// QueryMetrics returns the accumulated local query statistics.
func (p *Project) QueryMetrics() telemetry.Summary {
	return p.metrics.Snapshot()
}

// GetChunk returns a chunk by ID.
func (p *Project) GetChunk(id string) (*chunk.CodeChunk, bool) {
	return p.engine.GetChunk(id)
}

// Watch blocks, applying filesystem changes incrementally until ctx is
// cancelled.
func (p *Project) Watch(ctx context.Context) error {
	w, err := watcher.New(p.Root, watcher.Options{
		Debounce:       p.Config.WatchDebounceDuration(),
		IgnorePatterns: p.Config.Paths.Exclude,
		Logger:         p.log,
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	go p.orch.Watch(ctx, w)
	return w.Start(ctx)
}

// Stats summarizes the current index contents.
func (p *Project) Stats() store.Stats {
	return p.store.Stats()
}

// EmbeddingsEnabled reports whether the vector layer is active.
func (p *Project) EmbeddingsEnabled() bool {
	return p.embedder.Enabled()
}

// Close flushes and releases every component. Safe to call more than
// once.
func (p *Project) Close() error {
	p.closeOnce.Do(func() {
		if err := p.metrics.Save(); err != nil {
			p.log.Warn("could not persist query statistics", "error", err)
		}
		storeErr := p.store.Close()
		embErr := p.embedder.Close()
		p.pool.Close()
		p.closeErr = storeErr
		if p.closeErr == nil {
			p.closeErr = embErr
		}
	})
	return p.closeErr
}
