package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/codescope/codescope/internal/errors"
)

const (
	codeTokenizerName = "codescope_code_tokenizer"
	codeStopName      = "codescope_code_stop"
	codeAnalyzerName  = "codescope_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, newBleveCodeTokenizer)
	_ = registry.RegisterTokenFilter(codeStopName, newBleveCodeStopFilter)
}

// textDoc is what bleve indexes per chunk. Compacted text keeps the
// index small; name and path give literal matches extra surface.
type textDoc struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TextIndex is the BM25 full-text layer, an in-memory bleve index with
// a code-aware analyzer. Persistence is handled by the SQLite layer;
// the bleve index is rebuilt from documents on load.
type TextIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewTextIndex creates the full-text index.
func NewTextIndex() (*TextIndex, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "create text index", err)
	}
	return &TextIndex{index: idx}, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopName,
		},
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "register code analyzer", err)
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

// Index adds or replaces documents.
func (t *TextIndex) Index(docs []*IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := t.index.NewBatch()
	for _, d := range docs {
		content := d.Chunk.CompactedText
		if content == "" {
			content = d.Chunk.OriginalText
		}
		doc := textDoc{
			Name:    d.Chunk.Name,
			Path:    d.Chunk.Location.Path,
			Content: content,
		}
		if err := batch.Index(d.Chunk.ID, doc); err != nil {
			return errors.New(errors.ErrCodeInternal, fmt.Sprintf("index document %s", d.Chunk.ID), err)
		}
	}
	if err := t.index.Batch(batch); err != nil {
		return errors.StorageError("apply text index batch", err)
	}
	return nil
}

// Delete removes documents by chunk ID.
func (t *TextIndex) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := t.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := t.index.Batch(batch); err != nil {
		return errors.StorageError("delete from text index", err)
	}
	return nil
}

// Search returns up to limit BM25-ranked hits for the query terms.
func (t *TextIndex) Search(ctx context.Context, query string, limit int) ([]TextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	match := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(match)
	req.Size = limit
	req.IncludeLocations = true

	res, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.StorageError("full-text search", err)
	}

	out := make([]TextResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, TextResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit),
		})
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (t *TextIndex) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, _ := t.index.DocCount()
	return n
}

// Close releases the index.
func (t *TextIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.Close()
}

func matchedTerms(hit *search.DocumentMatch) []string {
	set := make(map[string]struct{})
	for _, locations := range hit.Locations {
		for term := range locations {
			set[term] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	return out
}

func newBleveCodeTokenizer(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
	return bleveCodeTokenizer{}, nil
}

type bleveCodeTokenizer struct{}

// Tokenize runs the code-aware splitter and maps tokens back onto their
// byte offsets as best it can.
func (bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), tok)
		if start < 0 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)

		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}

func newBleveCodeStopFilter(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
	return bleveCodeStopFilter{}, nil
}

type bleveCodeStopFilter struct{}

func (bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := codeStopWords[strings.ToLower(string(tok.Term))]; !stop {
			out = append(out, tok)
		}
	}
	return out
}
