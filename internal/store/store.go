package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/errors"
)

// Store is the facade over the document store, the three retrieval
// layers, and SQLite persistence. A nil vector index means embeddings
// are disabled; similarity search then returns no hits rather than an
// error.
type Store struct {
	dir     string
	docs    *DocStore
	symbols *SymbolIndex
	refs    *RefIndex
	text    *TextIndex
	vectors *VectorIndex
	persist *Persistence
	log     *slog.Logger
}

// Options configures Open.
type Options struct {
	// Dir is the data directory holding the database and vector files.
	Dir string

	// VectorDimensions enables the vector layer when > 0.
	VectorDimensions int

	Logger *slog.Logger
}

// Open loads or creates a store in opts.Dir. On corruption the on-disk
// state is wiped and an empty store returned so the caller can rebuild
// from source.
func Open(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s, err := open(ctx, opts, log)
	if errors.IsCorruption(err) {
		log.Warn("index corrupted, wiping for full rebuild", "dir", opts.Dir, "error", err)
		if werr := Wipe(opts.Dir); werr != nil {
			return nil, werr
		}
		removeVectorFiles(opts.Dir)
		return open(ctx, opts, log)
	}
	return s, err
}

func open(ctx context.Context, opts Options, log *slog.Logger) (*Store, error) {
	persist, err := OpenPersistence(opts.Dir)
	if err != nil {
		return nil, err
	}

	text, err := NewTextIndex()
	if err != nil {
		_ = persist.Close()
		return nil, err
	}

	s := &Store{
		dir:     opts.Dir,
		docs:    NewDocStore(),
		symbols: NewSymbolIndex(),
		refs:    NewRefIndex(),
		text:    text,
		persist: persist,
		log:     log,
	}

	if opts.VectorDimensions > 0 {
		s.vectors = NewVectorIndex(opts.VectorDimensions)
		if err := s.vectors.Load(vectorPath(opts.Dir)); err != nil {
			_ = s.closeIndexes()
			return nil, err
		}
	}

	if err := s.rebuild(ctx); err != nil {
		_ = s.closeIndexes()
		return nil, err
	}
	return s, nil
}

func vectorPath(dir string) string { return filepath.Join(dir, "vectors.hnsw") }

func removeVectorFiles(dir string) {
	p := vectorPath(dir)
	for _, f := range []string{p, p + ".meta"} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not remove vector file", "path", f, "error", err)
		}
	}
}

// rebuild restores the in-memory layers from persisted documents. The
// bleve index is memory-only, so full text is always reindexed here.
func (s *Store) rebuild(ctx context.Context) error {
	byPath := make(map[string][]*IndexedDocument)
	err := s.persist.LoadAll(ctx, func(path string, doc *IndexedDocument) error {
		byPath[path] = append(byPath[path], doc)
		return nil
	})
	if err != nil {
		return err
	}

	for path, docs := range byPath {
		s.docs.ReplacePath(path, docs)
		s.symbols.ReplacePath(path, symbolsOf(docs))
		s.refs.ReplacePath(path, refsOf(docs))
		if err := s.text.Index(docs); err != nil {
			return err
		}
		if s.vectors != nil {
			if err := s.addVectors(docs); err != nil {
				return err
			}
		}
	}
	if len(byPath) > 0 {
		s.log.Debug("store restored", "paths", len(byPath), "documents", s.docs.Count())
	}
	return nil
}

func symbolsOf(docs []*IndexedDocument) []chunk.SymbolEntry {
	var out []chunk.SymbolEntry
	for _, d := range docs {
		c := d.Chunk
		if c.Name == "" || c.Level == chunk.LevelFile || c.Level == chunk.LevelModule {
			continue
		}
		out = append(out, chunk.SymbolEntry{
			Name:     c.Name,
			Kind:     symbolKindOf(c),
			ChunkID:  c.ID,
			Location: c.Location,
		})
	}
	for _, d := range docs {
		out = append(out, symbolEntriesOf(d.Chunk)...)
	}
	return out
}

func symbolKindOf(c *chunk.CodeChunk) chunk.SymbolKind {
	switch c.Level {
	case chunk.LevelClass:
		return chunk.SymbolClass
	case chunk.LevelFunction:
		return chunk.SymbolFunction
	default:
		return chunk.SymbolVariable
	}
}

// symbolEntriesOf lifts symbols the extractor attached to a chunk (top
// level constants and variables that never became chunks themselves).
func symbolEntriesOf(c *chunk.CodeChunk) []chunk.SymbolEntry {
	var out []chunk.SymbolEntry
	for _, name := range c.Symbols {
		if name == c.Name {
			continue
		}
		out = append(out, chunk.SymbolEntry{
			Name:     name,
			Kind:     chunk.SymbolVariable,
			ChunkID:  c.ID,
			Location: c.Location,
		})
	}
	return out
}

func refsOf(docs []*IndexedDocument) []chunk.Reference {
	var out []chunk.Reference
	for _, d := range docs {
		out = append(out, d.Refs...)
	}
	return out
}

func (s *Store) addVectors(docs []*IndexedDocument) error {
	var ids []string
	var vecs [][]float32
	for _, d := range docs {
		if d.Embedding == nil || len(d.Embedding.Vector) == 0 {
			continue
		}
		ids = append(ids, d.Chunk.ID)
		vecs = append(vecs, d.Embedding.Vector)
	}
	if len(ids) == 0 {
		return nil
	}
	return s.vectors.Add(ids, vecs)
}

// Upsert replaces everything indexed for a path: documents, symbols,
// full text, vectors, and the persisted rows, as one logical swap.
func (s *Store) Upsert(ctx context.Context, path, contentHash string, docs []*IndexedDocument) error {
	if err := s.persist.ReplacePath(ctx, path, contentHash, docs); err != nil {
		return err
	}

	displaced := s.docs.ReplacePath(path, docs)
	s.symbols.ReplacePath(path, symbolsOf(docs))
	s.refs.ReplacePath(path, refsOf(docs))

	if len(displaced) > 0 {
		if err := s.text.Delete(displaced); err != nil {
			return err
		}
		if s.vectors != nil {
			s.vectors.Delete(displaced)
		}
	}
	if err := s.text.Index(docs); err != nil {
		return err
	}
	if s.vectors != nil {
		if err := s.addVectors(docs); err != nil {
			return err
		}
	}
	return nil
}

// RemoveByPath drops everything indexed for a path.
func (s *Store) RemoveByPath(ctx context.Context, path string) error {
	if err := s.persist.RemovePath(ctx, path); err != nil {
		return err
	}

	removed := s.docs.RemovePath(path)
	s.symbols.RemovePath(path)
	s.refs.RemovePath(path)
	if len(removed) > 0 {
		if err := s.text.Delete(removed); err != nil {
			return err
		}
		if s.vectors != nil {
			s.vectors.Delete(removed)
		}
	}
	return nil
}

// Get returns a document by chunk ID.
func (s *Store) Get(id string) (*IndexedDocument, bool) { return s.docs.Get(id) }

// GetByPath returns all documents for a path.
func (s *Store) GetByPath(path string) []*IndexedDocument { return s.docs.GetByPath(path) }

// Manifest returns the persisted path to content-hash map.
func (s *Store) Manifest(ctx context.Context) (map[string]string, error) {
	return s.persist.Manifest(ctx)
}

// SymbolLookup returns exact symbol matches.
func (s *Store) SymbolLookup(name string) []chunk.SymbolEntry { return s.symbols.Lookup(name) }

// SymbolPrefix returns prefix symbol matches, exact first.
func (s *Store) SymbolPrefix(prefix string, limit int) []chunk.SymbolEntry {
	return s.symbols.LookupPrefix(prefix, limit)
}

// Referencers returns the reference edges mentioning a symbol.
func (s *Store) Referencers(symbol string) []chunk.Reference { return s.refs.Referencers(symbol) }

// FullTextSearch runs a BM25 query.
func (s *Store) FullTextSearch(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return s.text.Search(ctx, query, limit)
}

// SimilaritySearch runs a vector query. With vectors disabled it
// returns no hits.
func (s *Store) SimilaritySearch(query []float32, k int) ([]VectorResult, error) {
	if s.vectors == nil {
		return nil, nil
	}
	return s.vectors.Search(query, k)
}

// VectorsEnabled reports whether the vector layer is active.
func (s *Store) VectorsEnabled() bool { return s.vectors != nil }

// Stats summarizes store contents.
type Stats struct {
	Documents int    `json:"documents"`
	Paths     int    `json:"paths"`
	Symbols   int    `json:"symbols"`
	TextDocs  uint64 `json:"text_docs"`
	Vectors   int    `json:"vectors"`
}

// Stats returns current counts across the layers.
func (s *Store) Stats() Stats {
	st := Stats{
		Documents: s.docs.Count(),
		Paths:     len(s.docs.Paths()),
		Symbols:   s.symbols.Count(),
		TextDocs:  s.text.Count(),
	}
	if s.vectors != nil {
		st.Vectors = s.vectors.Count()
	}
	return st
}

// Flush persists the vector graph. Documents and manifest rows are
// written transactionally on every Upsert, so only vectors need it.
func (s *Store) Flush() error {
	if s.vectors == nil {
		return nil
	}
	return s.vectors.Save(vectorPath(s.dir))
}

// Close flushes and releases all resources.
func (s *Store) Close() error {
	flushErr := s.Flush()
	closeErr := s.closeIndexes()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *Store) closeIndexes() error {
	textErr := s.text.Close()
	persistErr := s.persist.Close()
	if textErr != nil {
		return textErr
	}
	return persistErr
}
