package lang

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry resolves files to languages. Construct one per indexer; it is
// safe for concurrent use after construction.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]*Language
	byExt       map[string]*Language
	shebangs    map[string]string // interpreter basename -> language name
	extPriority map[string][]string
}

// NewRegistry returns a registry with all built-in languages registered.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*Language),
		byExt:  make(map[string]*Language),
		shebangs: map[string]string{
			"python":  "python",
			"python3": "python",
			"node":    "javascript",
			"nodejs":  "javascript",
			"deno":    "typescript",
		},
		// Extensions claimed by more than one language resolve by this
		// fixed priority, independent of registration order.
		extPriority: map[string][]string{
			".ts": {"typescript"},
		},
	}

	for _, l := range []*Language{
		goLanguage(),
		typescriptLanguage(),
		tsxLanguage(),
		javascriptLanguage(),
		pythonLanguage(),
		rustLanguage(),
	} {
		r.Register(l)
	}
	return r
}

// Register adds a language. An extension already claimed is reassigned
// only if the priority table prefers the newcomer.
func (r *Registry) Register(l *Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[l.Name] = l
	for _, ext := range l.Extensions {
		ext = strings.ToLower(ext)
		existing, taken := r.byExt[ext]
		if !taken {
			r.byExt[ext] = l
			continue
		}
		for _, preferred := range r.extPriority[ext] {
			if preferred == existing.Name {
				break
			}
			if preferred == l.Name {
				r.byExt[ext] = l
				break
			}
		}
	}
}

// ByName returns the language with the given canonical name.
func (r *Registry) ByName(name string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byName[name]
	return l, ok
}

// Detect resolves a file to its language using the extension, falling
// back to shebang sniffing for extensionless files. content may be nil,
// in which case only the extension is consulted.
func (r *Registry) Detect(path string, content []byte) (*Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		r.mu.RLock()
		l, ok := r.byExt[ext]
		r.mu.RUnlock()
		return l, ok
	}

	if len(content) == 0 {
		return nil, false
	}
	name, ok := sniffShebang(content, r.shebangs)
	if !ok {
		return nil, false
	}
	return r.ByName(name)
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Names returns all registered language names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sniffShebang inspects a "#!" first line and maps the interpreter to a
// language. Handles the "/usr/bin/env python3" indirection.
func sniffShebang(content []byte, table map[string]string) (string, bool) {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return "", false
	}
	line := content[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return "", false
	}

	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = filepath.Base(fields[1])
	}
	if name, ok := table[interp]; ok {
		return name, true
	}
	// Strip a trailing version suffix ("python3.12" -> "python").
	interp = strings.TrimRight(interp, ".0123456789")
	name, ok := table[interp]
	return name, ok
}
