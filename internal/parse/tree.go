// Package parse turns source files into syntax trees. It owns the
// bounded per-language parser pool and the byte-budgeted AST cache that
// the rest of the indexing pipeline reads from.
package parse

import (
	"github.com/codescope/codescope/internal/lang"
)

// Point is a row/column position, zero-based.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is one syntax-tree node. Trees are immutable once built.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	FieldName  string // tree-sitter field name under the parent, if any
	Children   []*Node
}

// Tree is a parsed file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language *lang.Language

	// HasSyntaxErrors is set when the grammar recovered from errors.
	// The tree is still usable; unparseable regions appear as ERROR nodes.
	HasSyntaxErrors bool

	nodeCount int
}

// Content returns the source text a node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// ChildByField returns the first child carrying the given field name.
func (n *Node) ChildByField(field string) *Node {
	for _, c := range n.Children {
		if c.FieldName == field {
			return c
		}
	}
	return nil
}

// ChildByType returns the first child of the given type.
func (n *Node) ChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk traverses the tree pre-order. Returning false from fn skips the
// node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// LineSpan returns the zero-based start and end rows of the node.
func (n *Node) LineSpan() (start, end uint32) {
	return n.StartPoint.Row, n.EndPoint.Row
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	return t.nodeCount
}

// sizeBytes estimates the resident size of a tree for cache accounting:
// the retained source plus a fixed per-node overhead.
func (t *Tree) sizeBytes() int64 {
	const nodeOverhead = 96
	return int64(len(t.Source)) + int64(t.nodeCount)*nodeOverhead
}
