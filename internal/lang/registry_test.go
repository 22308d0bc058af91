package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"src/app.ts", "typescript"},
		{"src/App.tsx", "tsx"},
		{"lib/util.js", "javascript"},
		{"lib/util.jsx", "javascript"},
		{"scripts/run.py", "python"},
		{"src/lib.rs", "rust"},
		{"UPPER.GO", "go"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, ok := r.Detect(tt.path, nil)
			require.True(t, ok)
			assert.Equal(t, tt.want, l.Name)
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Detect("image.png", nil)
	assert.False(t, ok)

	_, ok = r.Detect("README", []byte("plain text"))
	assert.False(t, ok)
}

func TestDetectShebang(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"direct python", "#!/usr/bin/python\nprint('hi')\n", "python"},
		{"env python3", "#!/usr/bin/env python3\nprint('hi')\n", "python"},
		{"versioned python", "#!/usr/bin/env python3.12\n", "python"},
		{"node", "#!/usr/bin/env node\nconsole.log(1)\n", "javascript"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := r.Detect("script", []byte(tt.content))
			require.True(t, ok)
			assert.Equal(t, tt.want, l.Name)
		})
	}
}

func TestExtensionBeatsShebang(t *testing.T) {
	r := NewRegistry()

	// Extension is authoritative even when a shebang disagrees.
	l, ok := r.Detect("tool.rs", []byte("#!/usr/bin/env python3\n"))
	require.True(t, ok)
	assert.Equal(t, "rust", l.Name)
}

func TestKindTables(t *testing.T) {
	r := NewRegistry()

	goLang, ok := r.ByName("go")
	require.True(t, ok)

	k, ok := goLang.KindOf("function_declaration")
	require.True(t, ok)
	assert.Equal(t, KindFunction, k)

	k, ok = goLang.KindOf("method_declaration")
	require.True(t, ok)
	assert.Equal(t, KindMethod, k)

	_, ok = goLang.KindOf("import_declaration")
	assert.False(t, ok)
	assert.True(t, goLang.IsImport("import_declaration"))

	rustLang, ok := r.ByName("rust")
	require.True(t, ok)
	k, ok = rustLang.KindOf("trait_item")
	require.True(t, ok)
	assert.Equal(t, KindInterface, k)
}

func TestRegistryIsIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.Register(&Language{Name: "toy", Extensions: []string{".toy"}})

	_, ok := a.Detect("x.toy", nil)
	assert.True(t, ok)
	_, ok = b.Detect("x.toy", nil)
	assert.False(t, ok, "registries must not share state")
}
