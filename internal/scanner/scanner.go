// Package scanner discovers indexable source files under a project
// root. Results stream over a channel as the walk proceeds; exclusion
// combines built-in patterns, config patterns, gitignore rules, and
// content sniffing for binary or generated files.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codescope/codescope/internal/gitignore"
	"github.com/codescope/codescope/internal/lang"
)

// DefaultMaxFileSize caps individual files at 10 MiB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// FileInfo describes one discovered file.
type FileInfo struct {
	// Path is relative to the scan root, slash-separated.
	Path     string
	AbsPath  string
	Size     int64
	ModTime  time.Time
	Language string

	// IsGenerated marks files carrying a generated-code header.
	IsGenerated bool
}

// Result is one streamed scan outcome: a file or a walk error.
type Result struct {
	File  *FileInfo
	Error error
}

// Options controls a scan.
type Options struct {
	IncludePatterns  []string
	ExcludePatterns  []string
	MaxFileSize      int64
	RespectGitignore bool
	FollowSymlinks   bool
}

// Scanner walks project trees and reports supported source files.
type Scanner struct {
	langs *lang.Registry
	log   *slog.Logger
}

// New creates a scanner over the given language registry.
func New(langs *lang.Registry, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{langs: langs, log: log}
}

// Scan walks root and streams supported files. The returned channel
// closes when the walk finishes or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", absRoot)
	}

	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	var ignore *gitignore.Matcher
	if opts.RespectGitignore {
		ignore, err = gitignore.LoadTree(absRoot)
		if err != nil {
			s.log.Warn("could not load gitignore rules", "root", absRoot, "error", err)
		}
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, ignore, results)
	}()
	return results, nil
}

// ScanAll collects a full scan into a slice, error results separated.
func (s *Scanner) ScanAll(ctx context.Context, root string, opts Options) ([]*FileInfo, error) {
	ch, err := s.Scan(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	var files []*FileInfo
	for res := range ch {
		if res.Error != nil {
			return files, res.Error
		}
		files = append(files, res.File)
	}
	return files, ctx.Err()
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts Options, ignore *gitignore.Matcher, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excludeDir(rel, opts, ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.excludeFile(rel, opts, ignore) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			s.log.Debug("skipping oversized file", "path", rel, "size", info.Size())
			return nil
		}

		language, ok := s.detect(path, rel)
		if !ok {
			return nil
		}

		fi := &FileInfo{
			Path:        rel,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Language:    language,
			IsGenerated: isGeneratedFile(path),
		}
		select {
		case results <- Result{File: fi}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Error: err}:
		default:
		}
	}
}

// detect resolves the file's language, sniffing content only for
// extensionless files and rejecting binaries.
func (s *Scanner) detect(absPath, rel string) (string, bool) {
	head, err := readHead(absPath, 512)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(head, 0) {
		return "", false
	}
	l, ok := s.langs.Detect(rel, head)
	if !ok {
		return "", false
	}
	return l.Name, true
}

func (s *Scanner) excludeDir(rel string, opts Options, ignore *gitignore.Matcher) bool {
	base := filepath.Base(rel)
	for _, d := range defaultExcludeDirs {
		if base == d {
			return true
		}
	}
	for _, p := range opts.ExcludePatterns {
		if matchPattern(rel, base, p) {
			return true
		}
	}
	return ignore != nil && ignore.Match(rel, true)
}

func (s *Scanner) excludeFile(rel string, opts Options, ignore *gitignore.Matcher) bool {
	base := filepath.Base(rel)
	for _, p := range sensitiveFilePatterns {
		if matchPattern(rel, base, p) {
			return true
		}
	}
	for _, p := range opts.ExcludePatterns {
		if matchPattern(rel, base, p) {
			return true
		}
	}
	if len(opts.IncludePatterns) > 0 {
		included := false
		for _, p := range opts.IncludePatterns {
			if matchPattern(rel, base, p) {
				included = true
				break
			}
		}
		if !included {
			return true
		}
	}
	return ignore != nil && ignore.Match(rel, false)
}

// matchPattern handles the pattern shapes config files actually use:
// bare names, *.ext globs, dir/** prefixes, and **/name anywhere-match.
func matchPattern(rel, base, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "**/"):
		suffix := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		if ok, _ := filepath.Match(suffix, base); ok {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	case strings.HasSuffix(pattern, "/**"):
		prefix := strings.TrimSuffix(pattern, "/**")
		return rel == prefix || strings.HasPrefix(rel, prefix+"/")
	case strings.Contains(pattern, "/"):
		ok, _ := filepath.Match(pattern, rel)
		return ok
	default:
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		return rel == pattern || strings.HasPrefix(rel, pattern+"/")
	}
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}

// isGeneratedFile sniffs the first kilobyte for generated-code markers.
func isGeneratedFile(path string) bool {
	head, err := readHead(path, 1024)
	if err != nil {
		return false
	}
	content := string(head)
	for _, marker := range generatedMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

var generatedMarkers = []string{
	"Code generated",
	"DO NOT EDIT",
	"@generated",
	"Generated by",
	"AUTO-GENERATED",
}

// defaultExcludeDirs are skipped regardless of configuration.
var defaultExcludeDirs = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"target",
	".codescope",
}

// sensitiveFilePatterns are never indexed.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}
