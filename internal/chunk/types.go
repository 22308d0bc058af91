// Package chunk extracts hierarchical code chunks from syntax trees.
// Chunks form a tree per file: the File chunk is the root, and every
// other chunk points at its immediately enclosing chunk.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Level is the granularity of a chunk.
type Level string

const (
	LevelFile     Level = "file"
	LevelModule   Level = "module"
	LevelClass    Level = "class"
	LevelFunction Level = "function"
	LevelBlock    Level = "block"
)

// Location pins a chunk to its exact source span. Lines and columns are
// 1-indexed; the byte range indexes into the original file content.
type Location struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// Span returns the number of lines the location covers.
func (l Location) Span() int {
	return l.EndLine - l.StartLine + 1
}

// CodeChunk is the unit of indexing and retrieval.
type CodeChunk struct {
	ID               string   `json:"id"`
	Level            Level    `json:"level"`
	Name             string   `json:"name"`
	OriginalText     string   `json:"original_text"`
	CompactedText    string   `json:"compacted_text"`
	Location         Location `json:"location"`
	ParentID         string   `json:"parent_id,omitempty"`
	Symbols          []string `json:"symbols,omitempty"`
	Imports          []string `json:"imports,omitempty"`
	Language         string   `json:"language"`
	CompressionRatio float64  `json:"compression_ratio"`

	// Signature is the declaration header, kept through compaction.
	Signature string `json:"signature,omitempty"`

	// DocComment is the comment block immediately preceding the
	// declaration, when present.
	DocComment string `json:"doc_comment,omitempty"`
}

// RefKind classifies an outgoing reference edge.
type RefKind string

const (
	RefCall    RefKind = "call"
	RefImport  RefKind = "import"
	RefInherit RefKind = "inherit"
)

// Reference is a lightweight edge from a chunk to a symbol name it
// mentions. Edges are resolved at query time, not stored as a graph.
type Reference struct {
	FromChunkID string  `json:"from_chunk_id"`
	Symbol      string  `json:"symbol"`
	Kind        RefKind `json:"kind"`
}

// SymbolKind classifies a symbol index entry.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolConstant  SymbolKind = "constant"
	SymbolVariable  SymbolKind = "variable"
)

// SymbolEntry is one row of the symbol index: a named declaration and
// the chunk that defines it. Many entries can point at one chunk.
type SymbolEntry struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	ChunkID  string     `json:"chunk_id"`
	Location Location   `json:"location"`
}

// ChunkID derives the deterministic chunk identity from the file path,
// start line, and declared name. Re-parsing an unchanged region must
// reproduce the same ID across runs and worker counts.
func ChunkID(path string, startLine int, name string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, startLine, name)))
	return hex.EncodeToString(sum[:])[:16]
}
