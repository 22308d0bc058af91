package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"exact file", "secret.txt", "secret.txt", false, true},
		{"exact file nested", "secret.txt", "a/b/secret.txt", false, true},
		{"no match", "secret.txt", "public.txt", false, false},
		{"star extension", "*.log", "debug.log", false, true},
		{"star extension nested", "*.log", "logs/debug.log", false, true},
		{"star no cross slash", "a*b", "a/b", false, false},
		{"question mark", "fil?.txt", "file.txt", false, true},
		{"char class", "file[0-9].txt", "file3.txt", false, true},
		{"dir only matches dir", "build/", "build", true, true},
		{"dir only rejects file", "build/", "build", false, false},
		{"dir only covers contents", "build/", "build/out.o", false, true},
		{"anchored", "/top.txt", "top.txt", false, true},
		{"anchored not nested", "/top.txt", "sub/top.txt", false, false},
		{"slash anchors", "doc/frotz", "doc/frotz", false, true},
		{"slash anchors not nested", "doc/frotz", "a/doc/frotz", false, false},
		{"double star prefix", "**/temp", "x/y/temp", false, true},
		{"double star middle", "a/**/b", "a/x/y/b", false, true},
		{"comment ignored", "# comment", "# comment", false, false},
		{"escaped hash", `\#literal`, "#literal", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Add(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestNegationOverrides(t *testing.T) {
	m := New()
	m.Add("*.log")
	m.Add("!keep.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("keep.log", false))
}

func TestLaterRuleWins(t *testing.T) {
	m := New()
	m.Add("!important.txt")
	m.Add("*.txt")

	// The un-ignore came first, so the broad rule wins.
	assert.True(t, m.Match("important.txt", false))
}

func TestScopedPatterns(t *testing.T) {
	m := New()
	m.AddWithBase("*.gen.go", "pkg/api")

	assert.True(t, m.Match("pkg/api/client.gen.go", false))
	assert.False(t, m.Match("pkg/other/client.gen.go", false))
	assert.False(t, m.Match("client.gen.go", false))
}

func TestLoadTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("local.txt\n"), 0o644))

	m, err := LoadTree(root)
	require.NoError(t, err)

	assert.True(t, m.Match("app.log", false))
	assert.True(t, m.Match("sub/deep.log", false))
	assert.True(t, m.Match("sub/local.txt", false))
	assert.False(t, m.Match("local.txt", false), "nested pattern must not apply at root")
}

func TestAddFileMissing(t *testing.T) {
	m := New()
	assert.Error(t, m.AddFile(filepath.Join(t.TempDir(), "nope"), ""))
}
