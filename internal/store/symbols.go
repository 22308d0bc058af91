package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/codescope/codescope/internal/chunk"
)

// SymbolIndex answers exact and prefix symbol lookups. Entries are
// grouped by source path so a file update replaces its symbols as one
// unit.
type SymbolIndex struct {
	mu     sync.RWMutex
	byName map[string][]chunk.SymbolEntry
	byPath map[string][]string

	// names is kept sorted for prefix scans; rebuilt lazily.
	names []string
	dirty bool
}

// NewSymbolIndex creates an empty symbol index.
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		byName: make(map[string][]chunk.SymbolEntry),
		byPath: make(map[string][]string),
	}
}

// ReplacePath swaps all symbols for a path in one step.
func (s *SymbolIndex) ReplacePath(path string, entries []chunk.SymbolEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePathLocked(path)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		s.byName[e.Name] = append(s.byName[e.Name], e)
		names = append(names, e.Name)
	}
	if len(names) > 0 {
		s.byPath[path] = names
	}
	s.dirty = true
}

// RemovePath drops all symbols recorded for a path.
func (s *SymbolIndex) RemovePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePathLocked(path)
	s.dirty = true
}

func (s *SymbolIndex) removePathLocked(path string) {
	names, ok := s.byPath[path]
	if !ok {
		return
	}
	for _, name := range names {
		entries := s.byName[name]
		kept := entries[:0]
		for _, e := range entries {
			if e.Location.Path != path {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.byName, name)
		} else {
			s.byName[name] = kept
		}
	}
	delete(s.byPath, path)
}

// Lookup returns symbols matching the name exactly.
func (s *SymbolIndex) Lookup(name string) []chunk.SymbolEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byName[name]
	out := make([]chunk.SymbolEntry, len(entries))
	copy(out, entries)
	return out
}

// LookupPrefix returns up to limit symbols whose names start with the
// prefix, exact matches first.
func (s *SymbolIndex) LookupPrefix(prefix string, limit int) []chunk.SymbolEntry {
	if prefix == "" {
		return nil
	}

	s.mu.Lock()
	s.rebuildNamesLocked()
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chunk.SymbolEntry
	for _, e := range s.byName[prefix] {
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			return out
		}
	}

	i := sort.SearchStrings(s.names, prefix)
	for ; i < len(s.names) && strings.HasPrefix(s.names[i], prefix); i++ {
		if s.names[i] == prefix {
			continue
		}
		for _, e := range s.byName[s.names[i]] {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func (s *SymbolIndex) rebuildNamesLocked() {
	if !s.dirty {
		return
	}
	s.names = s.names[:0]
	for name := range s.byName {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	s.dirty = false
}

// Count returns the number of distinct symbol names.
func (s *SymbolIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}
