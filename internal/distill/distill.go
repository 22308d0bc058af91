// Package distill compacts chunk text for indexing. Compaction keeps
// the declaration header, the doc comment, and the names a chunk
// references, and replaces elided bodies with a line-count marker, so
// compacted text stays useful for retrieval while costing a fraction of
// the original. The exact source span survives in the chunk location,
// so callers can always jump back to the full text.
package distill

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codescope/codescope/internal/chunk"
)

// Level selects how aggressively bodies are reduced.
type Level int

const (
	// Light keeps a reduced body: comments and blank lines dropped,
	// long bodies truncated.
	Light Level = iota
	// Standard keeps the signature, doc comment, and referenced names.
	Standard
	// Maximum keeps only the signature and an elision marker.
	Maximum
)

// ParseLevel maps the config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "light":
		return Light, nil
	case "standard", "":
		return Standard, nil
	case "maximum":
		return Maximum, nil
	}
	return Standard, fmt.Errorf("unknown compaction level %q", s)
}

// lightBodyMaxLines bounds the body kept at Light level.
const lightBodyMaxLines = 8

// Compactor produces compacted text at a fixed level.
type Compactor struct {
	level Level
}

// New returns a compactor for the given level.
func New(level Level) *Compactor {
	return &Compactor{level: level}
}

// Apply compacts every chunk in an extraction result in place, filling
// CompactedText and CompressionRatio. Reference edges feed the
// referenced-symbols line of function and class chunks.
func (c *Compactor) Apply(res *chunk.Result) {
	refsByChunk := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, r := range res.Refs {
		if r.Kind == chunk.RefImport {
			continue
		}
		if seen[r.FromChunkID] == nil {
			seen[r.FromChunkID] = make(map[string]bool)
		}
		if !seen[r.FromChunkID][r.Symbol] {
			seen[r.FromChunkID][r.Symbol] = true
			refsByChunk[r.FromChunkID] = append(refsByChunk[r.FromChunkID], r.Symbol)
		}
	}

	childNames := make(map[string][]string)
	for _, ch := range res.Chunks {
		if ch.ParentID != "" {
			childNames[ch.ParentID] = append(childNames[ch.ParentID], ch.Name)
		}
	}

	for _, ch := range res.Chunks {
		ch.CompactedText = c.Compact(ch, refsByChunk[ch.ID], childNames[ch.ID])
		ch.CompressionRatio = ratio(ch.OriginalText, ch.CompactedText)
	}
}

// Compact returns the compacted text of one chunk. refs are the symbol
// names the chunk references; children are the names of its child
// chunks (used for file and class summaries).
func (c *Compactor) Compact(ch *chunk.CodeChunk, refs, children []string) string {
	switch ch.Level {
	case chunk.LevelFile:
		return c.summarize(ch, children)
	case chunk.LevelModule:
		// Import headers are already compact; keep them whole.
		return ch.OriginalText
	default:
		return c.compactBody(ch, refs, children)
	}
}

// summarize renders a file chunk as its imports plus declared names.
func (c *Compactor) summarize(ch *chunk.CodeChunk, children []string) string {
	var b strings.Builder
	b.WriteString(commentMarker(ch.Language))
	b.WriteString(" ")
	b.WriteString(ch.Location.Path)
	b.WriteString("\n")

	if len(ch.Imports) > 0 {
		b.WriteString("imports: ")
		b.WriteString(strings.Join(ch.Imports, ", "))
		b.WriteString("\n")
	}

	names := append(append([]string(nil), children...), ch.Symbols...)
	sort.Strings(names)
	if len(names) > 0 {
		b.WriteString("declares: ")
		b.WriteString(strings.Join(dedup(names), ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func (c *Compactor) compactBody(ch *chunk.CodeChunk, refs, children []string) string {
	sig := ch.Signature
	if sig == "" {
		sig = firstLine(ch.OriginalText)
	}

	var b strings.Builder
	if ch.DocComment != "" {
		b.WriteString(ch.DocComment)
		b.WriteString("\n")
	}
	b.WriteString(sig)
	b.WriteString("\n")

	bodyLines := countLines(ch.OriginalText) - countLines(sig)
	marker := commentMarker(ch.Language)

	switch c.level {
	case Light:
		kept, elided := reducedBody(ch.OriginalText, sig)
		for _, line := range kept {
			b.WriteString(line)
			b.WriteString("\n")
		}
		if elided > 0 {
			fmt.Fprintf(&b, "%s %d lines elided\n", marker, elided)
		}
	case Standard:
		if len(refs) > 0 {
			sort.Strings(refs)
			fmt.Fprintf(&b, "%s calls: %s\n", marker, strings.Join(dedup(refs), ", "))
		}
		if ch.Level == chunk.LevelClass && len(children) > 0 {
			sort.Strings(children)
			fmt.Fprintf(&b, "%s members: %s\n", marker, strings.Join(dedup(children), ", "))
		}
		if bodyLines > 0 {
			fmt.Fprintf(&b, "%s %d lines elided\n", marker, bodyLines)
		}
	case Maximum:
		if bodyLines > 0 {
			fmt.Fprintf(&b, "%s %d lines elided\n", marker, bodyLines)
		}
	}
	return b.String()
}

// reducedBody returns the body lines kept at Light level and the count
// of lines elided. Blank lines and comment-only lines are dropped, and
// the remainder is truncated.
func reducedBody(original, sig string) (kept []string, elided int) {
	lines := strings.Split(original, "\n")
	sigLines := countLines(sig)
	if sigLines >= len(lines) {
		return nil, 0
	}
	body := lines[sigLines:]

	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			elided++
			continue
		}
		if len(kept) >= lightBodyMaxLines {
			elided++
			continue
		}
		kept = append(kept, line)
	}
	return kept, elided
}

func ratio(original, compacted string) float64 {
	if len(original) == 0 {
		return 0
	}
	r := float64(len(original)-len(compacted)) / float64(len(original))
	if r < 0 {
		return 0
	}
	return r
}

func commentMarker(language string) string {
	if language == "python" {
		return "#"
	}
	return "//"
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}
