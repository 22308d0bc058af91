// Package index drives the indexing pipeline: discovery, parsing,
// chunk extraction, compaction, embedding, and storage, with bounded
// parallelism and per-file error isolation.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/distill"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/parse"
	"github.com/codescope/codescope/internal/scanner"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/watcher"
)

// FileError is one non-fatal per-file failure.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	FilesScanned int           `json:"files_scanned"`
	FilesIndexed int           `json:"files_indexed"`
	FilesSkipped int           `json:"files_skipped"`
	FilesRemoved int           `json:"files_removed"`
	Chunks       int           `json:"chunks"`
	Embedded     int           `json:"embedded"`
	Errors       []FileError   `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Orchestrator owns the pipeline components and the per-path
// generation map used to discard superseded re-index work.
type Orchestrator struct {
	root      string
	cfg       *config.Config
	langs     *lang.Registry
	scanner   *scanner.Scanner
	cache     *parse.Cache
	extractor *chunk.Extractor
	compactor *distill.Compactor
	embedder  embed.Embedder
	store     *store.Store
	log       *slog.Logger
	workers   int

	mu          sync.Mutex
	generations map[string]string
}

// New assembles an orchestrator from the pipeline components.
func New(root string, cfg *config.Config, langs *lang.Registry, cache *parse.Cache, embedder embed.Embedder, st *store.Store, log *slog.Logger) (*Orchestrator, error) {
	if log == nil {
		log = slog.Default()
	}
	level, err := distill.ParseLevel(cfg.Compaction.Level)
	if err != nil {
		return nil, err
	}
	workers := cfg.Indexing.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		root:        root,
		cfg:         cfg,
		langs:       langs,
		scanner:     scanner.New(langs, log),
		cache:       cache,
		extractor:   chunk.NewExtractor(),
		compactor:   distill.New(level),
		embedder:    embedder,
		store:       st,
		log:         log,
		workers:     workers,
		generations: make(map[string]string),
	}, nil
}

// IndexDirectory walks the root, indexes changed files, removes deleted
// ones, and reports statistics. Cancellation stops scheduling new files
// but lets in-flight files finish so no path is left half-applied.
func (o *Orchestrator) IndexDirectory(ctx context.Context) (*IndexStats, error) {
	start := time.Now()
	stats := &IndexStats{}
	var statsMu sync.Mutex

	dataDir := config.DataDir(o.root)
	if err := WriteStatus(dataDir, StatusSnapshot{State: StateIndexing, StartedAt: start}); err != nil {
		o.log.Warn("could not write index status", "error", err)
	}

	manifest, err := o.store.Manifest(ctx)
	if err != nil {
		o.failStatus(dataDir, start, err)
		return nil, err
	}

	files, err := o.scanner.Scan(ctx, o.root, scanner.Options{
		IncludePatterns:  o.cfg.Paths.Include,
		ExcludePatterns:  o.cfg.Paths.Exclude,
		MaxFileSize:      o.cfg.Indexing.MaxFileSize,
		RespectGitignore: o.cfg.GitignoreEnabled(),
	})
	if err != nil {
		o.failStatus(dataDir, start, err)
		return nil, err
	}

	seen := make(map[string]bool)
	g := &errgroup.Group{}
	g.SetLimit(o.workers)

	for res := range files {
		if res.Error != nil {
			statsMu.Lock()
			stats.Errors = append(stats.Errors, FileError{Message: res.Error.Error()})
			statsMu.Unlock()
			continue
		}
		if ctx.Err() != nil {
			break // stop scheduling, let in-flight work drain
		}

		file := res.File
		seen[file.Path] = true
		statsMu.Lock()
		stats.FilesScanned++
		statsMu.Unlock()

		g.Go(func() error {
			outcome := o.indexOne(ctx, file.Path, manifest[file.Path])
			statsMu.Lock()
			defer statsMu.Unlock()
			switch {
			case outcome.err != nil:
				stats.Errors = append(stats.Errors, FileError{Path: file.Path, Message: outcome.err.Error()})
			case outcome.skipped:
				stats.FilesSkipped++
			default:
				stats.FilesIndexed++
				stats.Chunks += outcome.chunks
				stats.Embedded += outcome.embedded
			}
			return nil
		})
	}
	_ = g.Wait()

	// Paths in the manifest but absent from the walk were deleted.
	if ctx.Err() == nil {
		for path := range manifest {
			if seen[path] {
				continue
			}
			if err := o.RemoveFile(ctx, path); err != nil {
				stats.Errors = append(stats.Errors, FileError{Path: path, Message: err.Error()})
				continue
			}
			stats.FilesRemoved++
		}
	}

	if err := o.store.Flush(); err != nil {
		o.log.Warn("could not flush vector index", "error", err)
	}

	stats.Duration = time.Since(start)

	snap := StatusSnapshot{
		State:        StateReady,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		FilesIndexed: stats.FilesIndexed,
		FilesSkipped: stats.FilesSkipped,
		FilesRemoved: stats.FilesRemoved,
		Chunks:       stats.Chunks,
		ErrorCount:   len(stats.Errors),
	}
	if ctx.Err() != nil {
		snap.State = StateError
		snap.Message = ctx.Err().Error()
	}
	if err := WriteStatus(dataDir, snap); err != nil {
		o.log.Warn("could not write index status", "error", err)
	}

	o.log.Info("index run complete",
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"removed", stats.FilesRemoved,
		"chunks", stats.Chunks,
		"errors", len(stats.Errors),
		"duration", stats.Duration)
	return stats, ctx.Err()
}

// IndexFile indexes one file by root-relative path.
func (o *Orchestrator) IndexFile(ctx context.Context, relPath string) error {
	outcome := o.indexOne(ctx, relPath, "")
	return outcome.err
}

// RemoveFile drops a file's chunks from the index.
func (o *Orchestrator) RemoveFile(ctx context.Context, relPath string) error {
	o.cache.Invalidate(relPath)
	o.setGeneration(relPath, "")
	return o.store.RemoveByPath(ctx, relPath)
}

// Watch consumes watcher batches until ctx is cancelled, applying each
// event incrementally.
func (o *Orchestrator) Watch(ctx context.Context, w *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				o.handleEvent(ctx, ev)
			}
			if err := o.store.Flush(); err != nil {
				o.log.Warn("could not flush vector index", "error", err)
			}
		case err, ok := <-w.Errors():
			if ok {
				o.log.Warn("watcher error", "error", err)
			}
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev watcher.FileEvent) {
	switch ev.Op {
	case watcher.OpCreate, watcher.OpModify:
		if _, ok := o.langs.Detect(ev.Path, nil); !ok {
			return
		}
		if err := o.IndexFile(ctx, ev.Path); err != nil {
			o.log.Warn("could not index changed file", "path", ev.Path, "error", err)
		}
	case watcher.OpDelete:
		if err := o.RemoveFile(ctx, ev.Path); err != nil {
			o.log.Warn("could not remove deleted file", "path", ev.Path, "error", err)
		}
	}
}

type indexOutcome struct {
	skipped  bool
	chunks   int
	embedded int
	err      error
}

// indexOne runs the full pipeline for a path. knownHash is the
// manifest's hash for incremental skip, empty to force re-hash against
// the store. A newer write to the same path supersedes this run: its
// results are discarded rather than applied.
func (o *Orchestrator) indexOne(ctx context.Context, relPath, knownHash string) indexOutcome {
	absPath := filepath.Join(o.root, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return indexOutcome{err: fmt.Errorf("read file: %w", err)}
	}

	hash := parse.HashContent(content)
	if knownHash != "" && knownHash == hash {
		return indexOutcome{skipped: true}
	}
	o.setGeneration(relPath, hash)

	l, ok := o.langs.Detect(relPath, content)
	if !ok {
		return indexOutcome{err: fmt.Errorf("unsupported language for %s", relPath)}
	}

	lease, err := o.cache.GetOrParse(ctx, relPath, content, l)
	if err != nil {
		return indexOutcome{err: err}
	}
	defer lease.Release()

	res, err := o.extractor.Extract(lease.Tree, relPath)
	if err != nil {
		return indexOutcome{err: err}
	}
	o.compactor.Apply(res)

	docs, embedded := o.buildDocuments(ctx, res)

	if o.generation(relPath) != hash {
		o.log.Debug("discarding superseded index result", "path", relPath)
		return indexOutcome{skipped: true}
	}
	if err := o.store.Upsert(ctx, relPath, hash, docs); err != nil {
		return indexOutcome{err: err}
	}
	return indexOutcome{chunks: len(docs), embedded: embedded}
}

// buildDocuments wraps chunks as stored documents, attaching reference
// edges and, when the provider is enabled, embeddings. Embedding
// failures leave the documents searchable without vectors.
func (o *Orchestrator) buildDocuments(ctx context.Context, res *chunk.Result) ([]*store.IndexedDocument, int) {
	refsByChunk := make(map[string][]chunk.Reference)
	for _, r := range res.Refs {
		refsByChunk[r.FromChunkID] = append(refsByChunk[r.FromChunkID], r)
	}

	var vectors [][]float32
	if o.embedder.Enabled() {
		texts := make([]string, len(res.Chunks))
		for i, c := range res.Chunks {
			texts[i] = c.CompactedText
		}
		var err error
		vectors, err = o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			o.log.Warn("embedding batch failed, storing without vectors", "error", err)
			vectors = nil
		}
	}

	embedded := 0
	docs := make([]*store.IndexedDocument, 0, len(res.Chunks))
	for i, c := range res.Chunks {
		var rec *embed.Record
		if vectors != nil && i < len(vectors) && len(vectors[i]) > 0 {
			rec = &embed.Record{ChunkID: c.ID, Vector: vectors[i], ModelID: o.embedder.ModelName()}
			embedded++
		}
		doc := store.NewDocument(c, rec)
		doc.Refs = refsByChunk[c.ID]
		docs = append(docs, doc)
	}
	return docs, embedded
}

func (o *Orchestrator) failStatus(dataDir string, start time.Time, cause error) {
	snap := StatusSnapshot{
		State:      StateError,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Message:    cause.Error(),
	}
	if err := WriteStatus(dataDir, snap); err != nil {
		o.log.Warn("could not write index status", "error", err)
	}
}

func (o *Orchestrator) setGeneration(path, hash string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hash == "" {
		delete(o.generations, path)
		return
	}
	o.generations[path] = hash
}

func (o *Orchestrator) generation(path string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generations[path]
}
