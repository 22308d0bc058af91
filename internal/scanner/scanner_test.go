package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/lang"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func scanPaths(t *testing.T, root string, opts Options) []string {
	t.Helper()
	s := New(lang.NewRegistry(), nil)
	files, err := s.ScanAll(context.Background(), root, opts)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestScanFindsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":       "package main\n",
		"lib/util.py":   "def f():\n    pass\n",
		"web/app.ts":    "export const x = 1\n",
		"README.md":     "# readme\n",
		"Makefile":      "all:\n\ttrue\n",
		"img/logo.data": "\x00\x01\x02binary",
	})

	paths := scanPaths(t, root, Options{})
	assert.Equal(t, []string{"lib/util.py", "main.go", "web/app.ts"}, paths)
}

func TestScanSkipsDefaultDirsAndSensitiveFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                 "package main\n",
		"node_modules/x/index.js": "module.exports = 1\n",
		"vendor/dep/dep.go":       "package dep\n",
		".codescope/index.db":     "data",
		".env":                    "SECRET=1",
		"server.key":              "keydata",
	})

	paths := scanPaths(t, root, Options{})
	assert.Equal(t, []string{"main.go"}, paths)
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":     "generated.go\nout/\n",
		"main.go":        "package main\n",
		"generated.go":   "package main\n",
		"out/emitted.go": "package out\n",
	})

	paths := scanPaths(t, root, Options{RespectGitignore: true})
	assert.Equal(t, []string{"main.go"}, paths)

	paths = scanPaths(t, root, Options{})
	assert.Contains(t, paths, "generated.go")
}

func TestScanConfigPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":         "package a\n",
		"a_test.go":    "package a\n",
		"scripts/x.py": "pass\n",
	})

	paths := scanPaths(t, root, Options{ExcludePatterns: []string{"*_test.go", "scripts/**"}})
	assert.Equal(t, []string{"a.go"}, paths)

	paths = scanPaths(t, root, Options{IncludePatterns: []string{"*.py"}})
	assert.Equal(t, []string{"scripts/x.py"}, paths)
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'a'
	}
	writeTree(t, root, map[string]string{"small.go": "package s\n"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.go"), big, 0o644))

	paths := scanPaths(t, root, Options{MaxFileSize: 1024})
	assert.Equal(t, []string{"small.go"}, paths)
}

func TestScanMarksGeneratedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"gen.go":  "// Code generated by stringer. DO NOT EDIT.\npackage gen\n",
		"hand.go": "package hand\n",
	})

	s := New(lang.NewRegistry(), nil)
	files, err := s.ScanAll(context.Background(), root, Options{})
	require.NoError(t, err)

	byPath := make(map[string]*FileInfo)
	for _, f := range files {
		byPath[f.Path] = f
	}
	assert.True(t, byPath["gen.go"].IsGenerated)
	assert.False(t, byPath["hand.go"].IsGenerated)
}

func TestScanDetectsShebangScripts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"tool": "#!/usr/bin/env python3\nprint('hi')\n",
	})

	s := New(lang.NewRegistry(), nil)
	files, err := s.ScanAll(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "python", files[0].Language)
}
