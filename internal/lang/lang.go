// Package lang defines the supported source languages and their
// tree-sitter grammars. Each Language carries a capability table mapping
// grammar node kinds to the symbol kinds the chunker understands, so the
// chunker itself stays language-agnostic.
package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Kind classifies what a grammar node declares.
type Kind int

const (
	KindFunction Kind = iota
	KindMethod
	KindClass
	KindInterface
	KindTypeDef
	KindConstant
	KindVariable
)

// Language describes one supported language.
type Language struct {
	// Name is the canonical language identifier ("go", "python", ...).
	Name string

	// Extensions are the file extensions handled, with leading dot.
	Extensions []string

	// Grammar is the tree-sitter grammar.
	Grammar *sitter.Language

	// Kinds maps grammar node types to symbol kinds.
	Kinds map[string]Kind

	// NameField is the tree-sitter field holding a declaration's name.
	NameField string

	// ImportTypes are node types that declare imports.
	ImportTypes []string

	// CallTypes are node types representing call sites, used when
	// collecting outgoing reference edges.
	CallTypes []string

	// CommentTypes are node types carrying comments or docstrings.
	CommentTypes []string

	// BlockTypes are compound-statement node types eligible for
	// block-level chunks when they span enough lines.
	BlockTypes []string
}

// KindOf returns the symbol kind of a node type, if any.
func (l *Language) KindOf(nodeType string) (Kind, bool) {
	k, ok := l.Kinds[nodeType]
	return k, ok
}

// IsImport reports whether the node type declares an import.
func (l *Language) IsImport(nodeType string) bool {
	for _, t := range l.ImportTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// IsBlock reports whether the node type is a chunkable compound statement.
func (l *Language) IsBlock(nodeType string) bool {
	for _, t := range l.BlockTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

func goLanguage() *Language {
	return &Language{
		Name:       "go",
		Extensions: []string{".go"},
		Grammar:    golang.GetLanguage(),
		Kinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindTypeDef,
			"const_declaration":    KindConstant,
			"var_declaration":      KindVariable,
		},
		NameField:    "name",
		ImportTypes:  []string{"import_declaration"},
		CallTypes:    []string{"call_expression"},
		CommentTypes: []string{"comment"},
		BlockTypes:   []string{"if_statement", "for_statement", "select_statement", "type_switch_statement", "expression_switch_statement"},
	}
}

func typescriptLanguage() *Language {
	return &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		Grammar:    typescript.GetLanguage(),
		Kinds: map[string]Kind{
			"function_declaration":   KindFunction,
			"method_definition":      KindMethod,
			"class_declaration":      KindClass,
			"interface_declaration":  KindInterface,
			"type_alias_declaration": KindTypeDef,
			"enum_declaration":       KindTypeDef,
			"lexical_declaration":    KindConstant,
			"variable_declaration":   KindVariable,
		},
		NameField:    "name",
		ImportTypes:  []string{"import_statement"},
		CallTypes:    []string{"call_expression", "new_expression"},
		CommentTypes: []string{"comment"},
		BlockTypes:   []string{"if_statement", "for_statement", "while_statement", "switch_statement", "try_statement"},
	}
}

func tsxLanguage() *Language {
	ts := typescriptLanguage()
	return &Language{
		Name:         "tsx",
		Extensions:   []string{".tsx"},
		Grammar:      tsx.GetLanguage(),
		Kinds:        ts.Kinds,
		NameField:    ts.NameField,
		ImportTypes:  ts.ImportTypes,
		CallTypes:    ts.CallTypes,
		CommentTypes: ts.CommentTypes,
		BlockTypes:   ts.BlockTypes,
	}
}

func javascriptLanguage() *Language {
	return &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs", ".jsx"},
		Grammar:    javascript.GetLanguage(),
		Kinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_definition":    KindMethod,
			"class_declaration":    KindClass,
			"lexical_declaration":  KindConstant,
			"variable_declaration": KindVariable,
		},
		NameField:    "name",
		ImportTypes:  []string{"import_statement"},
		CallTypes:    []string{"call_expression", "new_expression"},
		CommentTypes: []string{"comment"},
		BlockTypes:   []string{"if_statement", "for_statement", "while_statement", "switch_statement", "try_statement"},
	}
}

func pythonLanguage() *Language {
	return &Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		Grammar:    python.GetLanguage(),
		Kinds: map[string]Kind{
			// Methods are function_definitions nested in a class; the
			// chunker reclassifies by parent.
			"function_definition": KindFunction,
			"class_definition":    KindClass,
		},
		NameField:    "name",
		ImportTypes:  []string{"import_statement", "import_from_statement"},
		CallTypes:    []string{"call"},
		CommentTypes: []string{"comment", "expression_statement"},
		BlockTypes:   []string{"if_statement", "for_statement", "while_statement", "with_statement", "try_statement"},
	}
}

func rustLanguage() *Language {
	return &Language{
		Name:       "rust",
		Extensions: []string{".rs"},
		Grammar:    rust.GetLanguage(),
		Kinds: map[string]Kind{
			"function_item": KindFunction,
			"struct_item":   KindClass,
			"enum_item":     KindClass,
			"trait_item":    KindInterface,
			"impl_item":     KindClass,
			"type_item":     KindTypeDef,
			"const_item":    KindConstant,
			"static_item":   KindVariable,
			"mod_item":      KindClass,
		},
		NameField:    "name",
		ImportTypes:  []string{"use_declaration"},
		CallTypes:    []string{"call_expression", "macro_invocation"},
		CommentTypes: []string{"line_comment", "block_comment"},
		BlockTypes:   []string{"if_expression", "for_expression", "while_expression", "loop_expression", "match_expression"},
	}
}
