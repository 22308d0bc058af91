package store

import (
	"sync"

	"github.com/codescope/codescope/internal/chunk"
)

// RefIndex inverts reference edges: for a symbol name, which chunks
// mention it. Edges are grouped by source path so file updates swap
// them atomically alongside the documents.
type RefIndex struct {
	mu       sync.RWMutex
	bySymbol map[string][]pathRef
	byPath   map[string][]string
}

type pathRef struct {
	path string
	ref  chunk.Reference
}

// NewRefIndex creates an empty reference index.
func NewRefIndex() *RefIndex {
	return &RefIndex{
		bySymbol: make(map[string][]pathRef),
		byPath:   make(map[string][]string),
	}
}

// ReplacePath swaps all edges originating from a path.
func (r *RefIndex) ReplacePath(path string, refs []chunk.Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removePathLocked(path)

	symbols := make([]string, 0, len(refs))
	for _, ref := range refs {
		r.bySymbol[ref.Symbol] = append(r.bySymbol[ref.Symbol], pathRef{path: path, ref: ref})
		symbols = append(symbols, ref.Symbol)
	}
	if len(symbols) > 0 {
		r.byPath[path] = symbols
	}
}

// RemovePath drops all edges recorded for a path.
func (r *RefIndex) RemovePath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removePathLocked(path)
}

func (r *RefIndex) removePathLocked(path string) {
	symbols, ok := r.byPath[path]
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if _, done := seen[sym]; done {
			continue
		}
		seen[sym] = struct{}{}

		edges := r.bySymbol[sym]
		kept := edges[:0]
		for _, e := range edges {
			if e.path != path {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.bySymbol, sym)
		} else {
			r.bySymbol[sym] = kept
		}
	}
	delete(r.byPath, path)
}

// Referencers returns the edges that mention the symbol.
func (r *RefIndex) Referencers(symbol string) []chunk.Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	edges := r.bySymbol[symbol]
	out := make([]chunk.Reference, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.ref)
	}
	return out
}

// Count returns the number of distinct referenced symbols.
func (r *RefIndex) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}
