// Package search is the retrieval engine: it runs the symbol,
// full-text, and vector layers concurrently over the store and fuses
// their rankings with Reciprocal Rank Fusion.
package search

import (
	"github.com/codescope/codescope/internal/chunk"
)

// DefaultRRFConstant is the RRF smoothing parameter. k=60 is the
// widely used default across search systems.
const DefaultRRFConstant = 60

// DefaultLimit caps results when the caller does not set one.
const DefaultLimit = 10

// Filters narrows a query. Unknown languages and absolute path
// prefixes are rejected before any layer runs.
type Filters struct {
	Language   string
	PathPrefix string
}

// Query is one search request.
type Query struct {
	Text    string
	Filters Filters
	Limit   int
}

// ScoreBreakdown reports each layer's contribution to a result.
type ScoreBreakdown struct {
	Similarity      float64 `json:"similarity"`
	KeywordBonus    float64 `json:"keyword_bonus"`
	StructuralBonus float64 `json:"structural_bonus"`
	QualityBonus    float64 `json:"quality_bonus"`
}

// Result is one ranked search hit.
type Result struct {
	Chunk      *chunk.CodeChunk `json:"chunk"`
	Breakdown  ScoreBreakdown   `json:"score_breakdown"`
	FinalScore float64          `json:"final_score"`

	// MatchedTerms are the full-text terms that hit, for highlighting.
	MatchedTerms []string `json:"matched_terms,omitempty"`
}
