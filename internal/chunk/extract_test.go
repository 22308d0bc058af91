package chunk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/lang"
	"github.com/codescope/codescope/internal/parse"
)

func parseSource(t *testing.T, langName, source string) *parse.Tree {
	t.Helper()
	reg := lang.NewRegistry()
	l, ok := reg.ByName(langName)
	require.True(t, ok)

	pool := parse.NewPool(1, 10*time.Second)
	t.Cleanup(pool.Close)

	tree, err := pool.Parse(context.Background(), []byte(source), l)
	require.NoError(t, err)
	return tree
}

func chunkByName(chunks []*CodeChunk, name string) *CodeChunk {
	for _, c := range chunks {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestExtractGoFile(t *testing.T) {
	source := `package calc

import "fmt"

// Add returns the sum of two integers.
func Add(a, b int) int {
	return a + b
}

type Counter struct {
	n int
}

// Incr bumps the counter.
func (c *Counter) Incr() {
	c.n++
	fmt.Println(c.n)
}
`
	tree := parseSource(t, "go", source)
	res, err := NewExtractor().Extract(tree, "calc/calc.go")
	require.NoError(t, err)

	require.NotEmpty(t, res.Chunks)
	file := res.Chunks[0]
	assert.Equal(t, LevelFile, file.Level)
	assert.Empty(t, file.ParentID)
	assert.Contains(t, file.Imports, "fmt")

	mod := chunkByName(res.Chunks, "module")
	require.NotNil(t, mod)
	assert.Equal(t, LevelModule, mod.Level)
	assert.Equal(t, file.ID, mod.ParentID)

	add := chunkByName(res.Chunks, "Add")
	require.NotNil(t, add)
	assert.Equal(t, LevelFunction, add.Level)
	assert.Equal(t, file.ID, add.ParentID)
	assert.Equal(t, "func Add(a, b int) int", add.Signature)
	assert.Contains(t, add.DocComment, "sum of two integers")

	counter := chunkByName(res.Chunks, "Counter")
	require.NotNil(t, counter)
	assert.Equal(t, LevelClass, counter.Level)

	incr := chunkByName(res.Chunks, "Incr")
	require.NotNil(t, incr)

	// The Println call inside Incr produces a call edge.
	var foundCall bool
	for _, r := range res.Refs {
		if r.FromChunkID == incr.ID && r.Symbol == "Println" && r.Kind == RefCall {
			foundCall = true
		}
	}
	assert.True(t, foundCall, "expected call edge from Incr to Println")
}

func TestExtractRustSingleFunction(t *testing.T) {
	tree := parseSource(t, "rust", "fn add(a: i32, b: i32) -> i32 { a + b }\n")
	res, err := NewExtractor().Extract(tree, "src/lib.rs")
	require.NoError(t, err)

	var fns []*CodeChunk
	for _, c := range res.Chunks {
		if c.Level == LevelFunction {
			fns = append(fns, c)
		}
	}
	require.Len(t, fns, 1, "one function declaration yields exactly one function chunk")
	assert.Equal(t, "add", fns[0].Name)
	assert.Equal(t, "fn add(a: i32, b: i32) -> i32", fns[0].Signature)
	assert.Empty(t, fns[0].Symbols, "the declared name belongs to the symbol index, not the chunk")
}

func TestExtractPythonClassAndMethods(t *testing.T) {
	source := `import os

class Widget(Base):
    def render(self):
        return os.path.join("a", "b")

def helper():
    pass
`
	tree := parseSource(t, "python", source)
	res, err := NewExtractor().Extract(tree, "wid.py")
	require.NoError(t, err)

	widget := chunkByName(res.Chunks, "Widget")
	require.NotNil(t, widget)
	assert.Equal(t, LevelClass, widget.Level)

	render := chunkByName(res.Chunks, "render")
	require.NotNil(t, render)
	assert.Equal(t, widget.ID, render.ParentID, "method chunk nests under its class")
	assert.Equal(t, "def render(self):", render.Signature)

	var renderIsMethod bool
	for _, s := range res.Symbols {
		if s.Name == "render" && s.Kind == SymbolMethod {
			renderIsMethod = true
		}
	}
	assert.True(t, renderIsMethod, "functions inside a class body are methods")

	var inherits bool
	for _, r := range res.Refs {
		if r.FromChunkID == widget.ID && r.Symbol == "Base" && r.Kind == RefInherit {
			inherits = true
		}
	}
	assert.True(t, inherits, "expected inheritance edge Widget -> Base")

	helper := chunkByName(res.Chunks, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, res.Chunks[0].ID, helper.ParentID)
}

func TestExtractTypescriptArrowFunction(t *testing.T) {
	source := `const fetchUser = async (id: string) => {
	return api.get(id);
};
`
	tree := parseSource(t, "typescript", source)
	res, err := NewExtractor().Extract(tree, "api.ts")
	require.NoError(t, err)

	fn := chunkByName(res.Chunks, "fetchUser")
	require.NotNil(t, fn)
	assert.Equal(t, LevelFunction, fn.Level)
}

func TestExtractDeterministicIDs(t *testing.T) {
	source := "package p\n\nfunc F() {}\n"
	tree1 := parseSource(t, "go", source)
	tree2 := parseSource(t, "go", source)

	res1, err := NewExtractor().Extract(tree1, "p.go")
	require.NoError(t, err)
	res2, err := NewExtractor().Extract(tree2, "p.go")
	require.NoError(t, err)

	require.Equal(t, len(res1.Chunks), len(res2.Chunks))
	for i := range res1.Chunks {
		assert.Equal(t, res1.Chunks[i].ID, res2.Chunks[i].ID)
	}

	// Same name at a different line is a different identity.
	assert.NotEqual(t, ChunkID("p.go", 3, "F"), ChunkID("p.go", 4, "F"))
	// Same shape in a different file is a different identity.
	assert.NotEqual(t, ChunkID("p.go", 3, "F"), ChunkID("q.go", 3, "F"))
}

func TestExtractLocationRoundTrip(t *testing.T) {
	source := `package p

// F does nothing.
func F(x int) int {
	if x > 0 {
		return x
	}
	return -x
}
`
	tree := parseSource(t, "go", source)
	res, err := NewExtractor().Extract(tree, "p.go")
	require.NoError(t, err)

	for _, c := range res.Chunks {
		got := source[c.Location.StartByte:c.Location.EndByte]
		assert.Equal(t, c.OriginalText, got, "chunk %s byte range must reproduce original text", c.Name)
	}
}

func TestExtractPreOrder(t *testing.T) {
	source := `package p

type T struct{}

func (t T) M() {}
`
	tree := parseSource(t, "go", source)
	res, err := NewExtractor().Extract(tree, "p.go")
	require.NoError(t, err)

	seen := map[string]bool{"": true}
	for _, c := range res.Chunks {
		assert.True(t, seen[c.ParentID], "parent of %s must precede it", c.Name)
		seen[c.ID] = true
	}
}

func TestExtractMalformedTree(t *testing.T) {
	_, err := NewExtractor().Extract(nil, "x.go")
	assert.Error(t, err)
}

func TestExtractTopLevelConstRecordedAsSymbol(t *testing.T) {
	source := "package p\n\nconst MaxSize = 10\n"
	tree := parseSource(t, "go", source)
	res, err := NewExtractor().Extract(tree, "p.go")
	require.NoError(t, err)

	assert.Contains(t, res.Chunks[0].Symbols, "MaxSize")
	var entry *SymbolEntry
	for i := range res.Symbols {
		if res.Symbols[i].Name == "MaxSize" {
			entry = &res.Symbols[i]
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, SymbolConstant, entry.Kind)
	assert.Equal(t, res.Chunks[0].ID, entry.ChunkID, "const has no chunk of its own")
}
