package search

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/store"
)

// Engine fuses the store's retrieval layers into ranked results.
type Engine struct {
	store    *store.Store
	embedder embed.Embedder
	langs    *lang.Registry
	k        int
	log      *slog.Logger
}

// Config configures an Engine.
type Config struct {
	RRFConstant int
	Logger      *slog.Logger
}

// NewEngine creates a retrieval engine over the store. The embedder
// may be disabled; the vector layer is then skipped entirely.
func NewEngine(s *store.Store, e embed.Embedder, langs *lang.Registry, cfg Config) *Engine {
	k := cfg.RRFConstant
	if k <= 0 {
		k = DefaultRRFConstant
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: s, embedder: e, langs: langs, k: k, log: log}
}

// GetChunk returns a chunk by ID.
func (e *Engine) GetChunk(id string) (*chunk.CodeChunk, bool) {
	doc, ok := e.store.Get(id)
	if !ok {
		return nil, false
	}
	return doc.Chunk, true
}

// Search runs all available layers concurrently, fuses their rankings
// with RRF, and re-ranks by quality and structural signals. Filter
// validation is the only error surfaced to the caller; layer failures
// degrade to the remaining layers.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errors.QueryError("query text is empty")
	}
	if err := e.validateFilters(q.Filters); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	// Overfetch so post-filter truncation still fills the limit.
	fetch := limit * 5
	if fetch < 50 {
		fetch = 50
	}

	var (
		symbolIDs []string
		textHits  []store.TextResult
		vecHits   []store.VectorResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		symbolIDs = e.symbolLayer(text, fetch)
		return nil
	})
	g.Go(func() error {
		hits, err := e.store.FullTextSearch(gctx, text, fetch)
		if err != nil {
			e.log.Warn("full-text layer failed", "error", err)
			return nil
		}
		textHits = hits
		return nil
	})
	if e.embedder.Enabled() {
		g.Go(func() error {
			hits, err := e.vectorLayer(gctx, text, fetch)
			if err != nil {
				e.log.Warn("vector layer failed", "error", err)
				return nil
			}
			vecHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	structuralIDs := e.structuralLayer(text, fetch)

	fused := e.fuse(symbolIDs, textHits, vecHits, structuralIDs)
	results := e.rank(fused, q.Filters, text)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (e *Engine) validateFilters(f Filters) error {
	if f.Language != "" {
		if _, ok := e.langs.ByName(f.Language); !ok {
			return errors.QueryError(fmt.Sprintf("unknown language filter: %q", f.Language))
		}
	}
	if f.PathPrefix != "" {
		if filepath.IsAbs(f.PathPrefix) || strings.Contains(f.PathPrefix, "..") {
			return errors.QueryError(fmt.Sprintf("path prefix must be relative: %q", f.PathPrefix))
		}
	}
	return nil
}

// symbolLayer resolves identifier-shaped query tokens against the
// symbol index, exact matches ahead of prefix matches.
func (e *Engine) symbolLayer(text string, limit int) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(entries []chunk.SymbolEntry) {
		for _, entry := range entries {
			if _, dup := seen[entry.ChunkID]; dup {
				continue
			}
			seen[entry.ChunkID] = struct{}{}
			ids = append(ids, entry.ChunkID)
		}
	}

	for _, token := range identifierTokens(text) {
		add(e.store.SymbolLookup(token))
	}
	for _, token := range identifierTokens(text) {
		add(e.store.SymbolPrefix(token, limit))
		if len(ids) >= limit {
			break
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// structuralLayer finds chunks whose reference edges mention a queried
// symbol, ranked by how many query tokens they reference.
func (e *Engine) structuralLayer(text string, limit int) []string {
	counts := make(map[string]int)
	for _, token := range identifierTokens(text) {
		for _, ref := range e.store.Referencers(token) {
			counts[ref.FromChunkID]++
		}
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (e *Engine) vectorLayer(ctx context.Context, text string, k int) ([]store.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.store.SimilaritySearch(vec, k)
}

// identifierTokens picks the query words that look like code
// identifiers, preserving order and dropping duplicates.
func identifierTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		// Dotted references resolve by their last segment.
		if i := strings.LastIndexByte(f, '.'); i >= 0 {
			f = f[i+1:]
		}
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// candidate accumulates one chunk's evidence across layers.
type candidate struct {
	id           string
	fused        float64
	similarity   float64
	keyword      float64
	structural   float64
	matchedTerms []string
}

// fuse applies Reciprocal Rank Fusion across the layer rankings.
// A layer contributes 1/(k+rank) for each result it ranked.
func (e *Engine) fuse(symbolIDs []string, textHits []store.TextResult, vecHits []store.VectorResult, structuralIDs []string) map[string]*candidate {
	cands := make(map[string]*candidate)
	get := func(id string) *candidate {
		if c, ok := cands[id]; ok {
			return c
		}
		c := &candidate{id: id}
		cands[id] = c
		return c
	}

	for rank, id := range symbolIDs {
		get(id).fused += 1.0 / float64(e.k+rank+1)
	}
	for rank, hit := range textHits {
		c := get(hit.ChunkID)
		c.fused += 1.0 / float64(e.k+rank+1)
		c.keyword = hit.Score
		c.matchedTerms = hit.MatchedTerms
	}
	for rank, hit := range vecHits {
		c := get(hit.ChunkID)
		c.fused += 1.0 / float64(e.k+rank+1)
		c.similarity = hit.Score
	}
	for rank, id := range structuralIDs {
		c := get(id)
		c.fused += 1.0 / float64(e.k+rank+1)
		c.structural = 1.0 / float64(rank+1)
	}
	return cands
}

// rank materializes candidates, applies filters, computes final scores,
// and orders results. Ties break toward the shorter source span, then
// the lexicographically smaller path.
func (e *Engine) rank(cands map[string]*candidate, f Filters, queryText string) []Result {
	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		doc, ok := e.store.Get(c.id)
		if !ok {
			continue
		}
		ch := doc.Chunk
		if f.Language != "" && ch.Language != f.Language {
			continue
		}
		if f.PathPrefix != "" && !strings.HasPrefix(ch.Location.Path, f.PathPrefix) {
			continue
		}

		final := c.fused * doc.Quality * boostFor(ch, queryText)
		results = append(results, Result{
			Chunk: ch,
			Breakdown: ScoreBreakdown{
				Similarity:      c.similarity,
				KeywordBonus:    c.keyword,
				StructuralBonus: c.structural,
				QualityBonus:    doc.Quality,
			},
			FinalScore:   final,
			MatchedTerms: c.matchedTerms,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if spanA, spanB := a.Chunk.Location.Span(), b.Chunk.Location.Span(); spanA != spanB {
			return spanA < spanB
		}
		return a.Chunk.Location.Path < b.Chunk.Location.Path
	})
	return results
}

// boostFor favors precise, code-level chunks and exact name matches.
func boostFor(c *chunk.CodeChunk, queryText string) float64 {
	boost := 1.0
	switch c.Level {
	case chunk.LevelFunction:
		boost = 1.2
	case chunk.LevelClass:
		boost = 1.1
	case chunk.LevelBlock:
		boost = 0.9
	case chunk.LevelFile, chunk.LevelModule:
		boost = 0.8
	}
	if c.Name != "" {
		for _, token := range identifierTokens(queryText) {
			if token == c.Name {
				boost *= 1.5
				break
			}
		}
	}
	return boost
}
