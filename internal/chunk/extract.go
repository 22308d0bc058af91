package chunk

import (
	"path/filepath"
	"strings"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/parse"
)

// DefaultBlockMinLines is the smallest compound statement that gets its
// own block-level chunk. Anything shorter stays part of its function.
const DefaultBlockMinLines = 15

// Result is everything extracted from one file.
type Result struct {
	// Chunks in pre-order: parents always precede their children.
	Chunks []*CodeChunk

	// Refs are outgoing reference edges found within chunk spans.
	Refs []Reference

	// Symbols are the symbol index entries for declared names.
	Symbols []SymbolEntry
}

// Extractor turns parsed trees into chunk trees using each language's
// capability table. Node kinds without a table entry are traversed but
// produce no chunk themselves.
type Extractor struct {
	// BlockMinLines gates block-level chunks by span.
	BlockMinLines int
}

// NewExtractor returns an extractor with default thresholds.
func NewExtractor() *Extractor {
	return &Extractor{BlockMinLines: DefaultBlockMinLines}
}

// Extract walks the tree and produces the file's chunk tree, reference
// edges, and symbol entries.
func (e *Extractor) Extract(tree *parse.Tree, path string) (*Result, error) {
	if tree == nil || tree.Root == nil {
		return nil, errors.New(errors.ErrCodeMalformedTree, "tree has no root", nil)
	}

	res := &Result{}
	st := &extractState{
		ex:   e,
		tree: tree,
		lang: tree.Language,
		path: path,
		res:  res,
	}

	fileChunk := st.makeChunk(LevelFile, filepath.Base(path), tree.Root, "")
	res.Chunks = append(res.Chunks, fileChunk)

	st.moduleChunk(fileChunk)
	st.walk(tree.Root, fileChunk, false)

	return res, nil
}

type extractState struct {
	ex   *Extractor
	tree *parse.Tree
	lang *lang.Language
	path string
	res  *Result
}

// walk visits n's children, creating chunks for nodes the capability
// table recognizes. parent is the nearest enclosing chunk.
func (s *extractState) walk(n *parse.Node, parent *CodeChunk, inClass bool) {
	for _, c := range n.Children {
		s.visit(c, parent, inClass)
	}
}

func (s *extractState) visit(n *parse.Node, parent *CodeChunk, inClass bool) {
	src := s.tree.Source

	// Python wraps decorated declarations in an extra node.
	if n.Type == "decorated_definition" {
		s.walk(n, parent, inClass)
		return
	}

	if s.lang.IsImport(n.Type) {
		for _, imp := range importNames(n, src) {
			s.res.Refs = append(s.res.Refs, Reference{
				FromChunkID: parent.ID,
				Symbol:      imp,
				Kind:        RefImport,
			})
		}
		return
	}

	if kind, ok := s.classify(n, inClass); ok {
		name := s.declName(n)
		if name == "" {
			s.walk(n, parent, inClass)
			return
		}

		switch kind {
		case SymbolConstant, SymbolVariable:
			// Named but not chunk-worthy: record on the enclosing chunk.
			parent.Symbols = append(parent.Symbols, name)
			s.addSymbol(name, kind, parent.ID, n)
			return
		}

		level := LevelFunction
		if kind == SymbolClass || kind == SymbolInterface || kind == SymbolType {
			level = LevelClass
		}

		// The declared name lives in the symbol index entry; Symbols on
		// the chunk holds only nested declarations that got no chunk.
		ch := s.makeChunk(level, name, n, parent.ID)
		ch.DocComment = s.docComment(n)
		ch.Signature = signatureOf(ch.OriginalText, s.lang.Name)
		s.res.Chunks = append(s.res.Chunks, ch)
		s.addSymbol(name, kind, ch.ID, n)

		if level == LevelClass {
			for _, sup := range s.superTypes(n) {
				s.res.Refs = append(s.res.Refs, Reference{
					FromChunkID: ch.ID,
					Symbol:      sup,
					Kind:        RefInherit,
				})
			}
		}

		s.walk(n, ch, level == LevelClass)
		return
	}

	if s.isCall(n.Type) {
		if callee := calleeName(n, src); callee != "" {
			s.res.Refs = append(s.res.Refs, Reference{
				FromChunkID: parent.ID,
				Symbol:      callee,
				Kind:        RefCall,
			})
		}
		s.walk(n, parent, inClass)
		return
	}

	if s.lang.IsBlock(n.Type) &&
		(parent.Level == LevelFunction || parent.Level == LevelBlock) &&
		int(n.EndPoint.Row-n.StartPoint.Row)+1 >= s.ex.BlockMinLines {
		ch := s.makeChunk(LevelBlock, n.Type, n, parent.ID)
		ch.Signature = firstLine(ch.OriginalText)
		s.res.Chunks = append(s.res.Chunks, ch)
		s.walk(n, ch, inClass)
		return
	}

	s.walk(n, parent, inClass)
}

// classify maps a node to the symbol kind it declares, reclassifying
// functions nested directly in a class body as methods.
func (s *extractState) classify(n *parse.Node, inClass bool) (SymbolKind, bool) {
	k, ok := s.lang.KindOf(n.Type)
	if !ok {
		return "", false
	}

	switch k {
	case lang.KindFunction:
		if inClass {
			return SymbolMethod, true
		}
		return SymbolFunction, true
	case lang.KindMethod:
		return SymbolMethod, true
	case lang.KindClass:
		return SymbolClass, true
	case lang.KindInterface:
		return SymbolInterface, true
	case lang.KindTypeDef:
		return SymbolType, true
	case lang.KindConstant:
		// A const binding holding a function expression is a function
		// in disguise; common in JS/TS.
		if fn := arrowFunctionName(n, s.tree.Source); fn != "" {
			return SymbolFunction, true
		}
		return SymbolConstant, true
	case lang.KindVariable:
		if fn := arrowFunctionName(n, s.tree.Source); fn != "" {
			return SymbolFunction, true
		}
		return SymbolVariable, true
	}
	return "", false
}

func (s *extractState) isCall(nodeType string) bool {
	for _, t := range s.lang.CallTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

func (s *extractState) makeChunk(level Level, name string, n *parse.Node, parentID string) *CodeChunk {
	loc := Location{
		Path:      s.path,
		StartLine: int(n.StartPoint.Row) + 1,
		StartCol:  int(n.StartPoint.Column) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		EndCol:    int(n.EndPoint.Column) + 1,
		StartByte: n.StartByte,
		EndByte:   n.EndByte,
	}
	return &CodeChunk{
		ID:           ChunkID(s.path, loc.StartLine, name),
		Level:        level,
		Name:         name,
		OriginalText: n.Content(s.tree.Source),
		Location:     loc,
		ParentID:     parentID,
		Language:     s.lang.Name,
	}
}

func (s *extractState) addSymbol(name string, kind SymbolKind, chunkID string, n *parse.Node) {
	s.res.Symbols = append(s.res.Symbols, SymbolEntry{
		Name:    name,
		Kind:    kind,
		ChunkID: chunkID,
		Location: Location{
			Path:      s.path,
			StartLine: int(n.StartPoint.Row) + 1,
			StartCol:  int(n.StartPoint.Column) + 1,
			EndLine:   int(n.EndPoint.Row) + 1,
			EndCol:    int(n.EndPoint.Column) + 1,
			StartByte: n.StartByte,
			EndByte:   n.EndByte,
		},
	})
}

// moduleChunk creates the file-header chunk covering top-level imports
// (plus the package clause in Go) when the file has any.
func (s *extractState) moduleChunk(fileChunk *CodeChunk) {
	var first, last *parse.Node
	var imports []string

	for _, c := range s.tree.Root.Children {
		header := c.Type == "package_clause" || s.lang.IsImport(c.Type)
		if !header {
			continue
		}
		if first == nil {
			first = c
		}
		last = c
		if s.lang.IsImport(c.Type) {
			imports = append(imports, importNames(c, s.tree.Source)...)
		}
	}
	if first == nil {
		return
	}

	loc := Location{
		Path:      s.path,
		StartLine: int(first.StartPoint.Row) + 1,
		StartCol:  int(first.StartPoint.Column) + 1,
		EndLine:   int(last.EndPoint.Row) + 1,
		EndCol:    int(last.EndPoint.Column) + 1,
		StartByte: first.StartByte,
		EndByte:   last.EndByte,
	}
	ch := &CodeChunk{
		ID:           ChunkID(s.path, loc.StartLine, "module"),
		Level:        LevelModule,
		Name:         "module",
		OriginalText: string(s.tree.Source[first.StartByte:last.EndByte]),
		Location:     loc,
		ParentID:     fileChunk.ID,
		Language:     s.lang.Name,
		Imports:      imports,
	}
	fileChunk.Imports = imports
	s.res.Chunks = append(s.res.Chunks, ch)
}

// declName finds the declared name of a node via the language's name
// field, with fallbacks for wrapper declarations.
func (s *extractState) declName(n *parse.Node) string {
	src := s.tree.Source

	if c := n.ChildByField(s.lang.NameField); c != nil {
		return c.Content(src)
	}

	// Go groups type/const/var declarations under spec nodes.
	for _, specType := range []string{"type_spec", "const_spec", "var_spec"} {
		if spec := n.ChildByType(specType); spec != nil {
			if c := spec.ChildByField("name"); c != nil {
				return c.Content(src)
			}
		}
	}

	// JS/TS bindings: const f = ...
	if d := n.ChildByType("variable_declarator"); d != nil {
		if c := d.ChildByField("name"); c != nil {
			return c.Content(src)
		}
	}

	return ""
}

// docComment collects the comment block ending on the line directly
// above the declaration.
func (s *extractState) docComment(n *parse.Node) string {
	src := s.tree.Source
	var lines []string

	stopRow := int(n.StartPoint.Row)
	// Scan the whole tree's comments; adjacency does the filtering.
	var comments []*parse.Node
	s.tree.Root.Walk(func(c *parse.Node) bool {
		if s.isComment(c.Type) && int(c.EndPoint.Row) < stopRow {
			comments = append(comments, c)
		}
		return c.StartByte < n.StartByte
	})

	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if int(c.EndPoint.Row) != stopRow-1 {
			break
		}
		lines = append([]string{strings.TrimSpace(c.Content(src))}, lines...)
		stopRow = int(c.StartPoint.Row)
	}
	return strings.Join(lines, "\n")
}

func (s *extractState) isComment(nodeType string) bool {
	for _, t := range s.lang.CommentTypes {
		if t == nodeType && nodeType != "expression_statement" {
			return true
		}
	}
	return false
}

// superTypes extracts inherited/extended type names from a class node.
func (s *extractState) superTypes(n *parse.Node) []string {
	src := s.tree.Source
	var out []string

	// Python: class C(Base1, Base2)
	if args := n.ChildByField("superclasses"); args != nil {
		args.Walk(func(c *parse.Node) bool {
			if c.Type == "identifier" || c.Type == "attribute" {
				out = append(out, lastSegment(c.Content(src)))
				return false
			}
			return true
		})
	}

	// JS/TS: class C extends Base
	if h := n.ChildByType("class_heritage"); h != nil {
		h.Walk(func(c *parse.Node) bool {
			if c.Type == "identifier" {
				out = append(out, c.Content(src))
				return false
			}
			return true
		})
	}

	return out
}

// arrowFunctionName returns the bound name when a declaration binds a
// function or arrow function expression, else "".
func arrowFunctionName(n *parse.Node, src []byte) string {
	d := n.ChildByType("variable_declarator")
	if d == nil {
		return ""
	}
	val := d.ChildByField("value")
	if val == nil {
		return ""
	}
	if val.Type != "arrow_function" && val.Type != "function_expression" && val.Type != "function" {
		return ""
	}
	if c := d.ChildByField("name"); c != nil {
		return c.Content(src)
	}
	return ""
}

// calleeName resolves the called symbol of a call node to its final
// name segment ("pkg.Func" -> "Func").
func calleeName(n *parse.Node, src []byte) string {
	fn := n.ChildByField("function")
	if fn == nil {
		fn = n.ChildByField("macro")
	}
	if fn == nil {
		return ""
	}
	return lastSegment(fn.Content(src))
}

func lastSegment(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// importNames pulls the imported module names out of an import node.
func importNames(n *parse.Node, src []byte) []string {
	var out []string
	n.Walk(func(c *parse.Node) bool {
		switch c.Type {
		case "interpreted_string_literal", "string_literal", "string":
			out = append(out, strings.Trim(c.Content(src), "\"'`"))
			return false
		case "dotted_name", "scoped_identifier":
			out = append(out, c.Content(src))
			return false
		}
		return true
	})
	return out
}

// signatureOf extracts the declaration header from a chunk's text.
// Brace languages cut at the body-opening brace; Python cuts at the
// colon that ends the def/class header.
func signatureOf(text, langName string) string {
	switch langName {
	case "python":
		depth := 0
		for i := 0; i < len(text); i++ {
			switch text[i] {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			case ':':
				if depth == 0 {
					return strings.TrimSpace(text[:i+1])
				}
			}
		}
		return firstLine(text)
	default:
		if i := strings.IndexByte(text, '{'); i >= 0 {
			return strings.TrimSpace(text[:i])
		}
		return firstLine(text)
	}
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}
