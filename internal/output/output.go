// Package output renders CLI results: status lines, key/value fields,
// search hits, and JSON for machine consumption.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/codescope/codescope/internal/search"
)

// Writer formats command output for a terminal or pipe.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a plain status line.
func (w *Writer) Status(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Statusf prints a formatted status line.
func (w *Writer) Statusf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Success prints a completed-action line.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintf(w.out, "✓ %s\n", msg)
}

// Successf prints a formatted completed-action line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a non-fatal problem line.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintf(w.out, "! %s\n", msg)
}

// Warningf prints a formatted non-fatal problem line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints a failure line.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintf(w.out, "✗ %s\n", msg)
}

// Field prints an aligned key/value pair.
func (w *Writer) Field(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-14s %v\n", key+":", value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults renders ranked hits with location, score, and an
// indented snippet of the compacted text.
func (w *Writer) SearchResults(results []search.Result) {
	if len(results) == 0 {
		w.Status("no results")
		return
	}
	for i, r := range results {
		c := r.Chunk
		name := c.Name
		if name == "" {
			name = "(file)"
		}
		_, _ = fmt.Fprintf(w.out, "%d. %s  %s:%d-%d  [%s %s]  score=%.4f\n",
			i+1, name, c.Location.Path, c.Location.StartLine, c.Location.EndLine,
			c.Language, c.Level, r.FinalScore)
		w.snippet(c.CompactedText, 6)
	}
}

// snippet prints up to maxLines of text, indented, with a trailing
// marker when truncated.
func (w *Writer) snippet(text string, maxLines int) {
	if text == "" {
		return
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	truncated := false
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	for _, line := range lines {
		_, _ = fmt.Fprintf(w.out, "   %s\n", line)
	}
	if truncated {
		_, _ = fmt.Fprintln(w.out, "   ...")
	}
	_, _ = fmt.Fprintln(w.out)
}
