// Package telemetry records local query statistics: counts, latency
// buckets, and zero-result rates. Nothing leaves the machine; queries
// are stored only as hashes.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryKind classifies a query by shape.
type QueryKind string

const (
	// KindLexical is an identifier-like query ("parseConfig", "http_client").
	KindLexical QueryKind = "lexical"
	// KindSemantic is a natural-language query ("where is retry handled").
	KindSemantic QueryKind = "semantic"
	// KindMixed contains both identifiers and prose.
	KindMixed QueryKind = "mixed"
)

// LatencyBucket is a coarse latency histogram bin.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "<10ms"
	BucketUnder50ms  LatencyBucket = "<50ms"
	BucketUnder200ms LatencyBucket = "<200ms"
	BucketUnder1s    LatencyBucket = "<1s"
	BucketOver1s     LatencyBucket = ">=1s"
)

// BucketFor maps a latency to its histogram bin.
func BucketFor(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 200:
		return BucketUnder200ms
	case ms < 1000:
		return BucketUnder1s
	default:
		return BucketOver1s
	}
}

// Summary is the persisted aggregate of all recorded queries.
type Summary struct {
	TotalQueries int                   `json:"total_queries"`
	ZeroResults  int                   `json:"zero_results"`
	ByKind       map[QueryKind]int     `json:"by_kind"`
	ByLatency    map[LatencyBucket]int `json:"by_latency"`
	LastQueryAt  time.Time             `json:"last_query_at"`
}

// fileName is the summary file under the data directory.
const fileName = "query_stats.json"

// Recorder accumulates query statistics and persists them as JSON.
type Recorder struct {
	mu      sync.Mutex
	path    string
	summary Summary
	recent  *lru.Cache[string, struct{}]
}

// Load opens the recorder for a data directory, reading any previous
// summary. A missing or unreadable file starts fresh.
func Load(dataDir string) *Recorder {
	r := &Recorder{
		path: filepath.Join(dataDir, fileName),
		summary: Summary{
			ByKind:    make(map[QueryKind]int),
			ByLatency: make(map[LatencyBucket]int),
		},
	}
	r.recent, _ = lru.New[string, struct{}](1024)

	data, err := os.ReadFile(r.path)
	if err != nil {
		return r
	}
	var s Summary
	if json.Unmarshal(data, &s) != nil {
		return r
	}
	if s.ByKind == nil {
		s.ByKind = make(map[QueryKind]int)
	}
	if s.ByLatency == nil {
		s.ByLatency = make(map[LatencyBucket]int)
	}
	r.summary = s
	return r
}

// Record adds one query observation.
func (r *Recorder) Record(query string, latency time.Duration, results int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.TotalQueries++
	if results == 0 {
		r.summary.ZeroResults++
	}
	r.summary.ByKind[Classify(query)]++
	r.summary.ByLatency[BucketFor(latency)]++
	r.summary.LastQueryAt = time.Now()
	r.recent.Add(hashQuery(query), struct{}{})
}

// Snapshot returns a copy of the aggregate.
func (r *Recorder) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.summary
	out.ByKind = make(map[QueryKind]int, len(r.summary.ByKind))
	for k, v := range r.summary.ByKind {
		out.ByKind[k] = v
	}
	out.ByLatency = make(map[LatencyBucket]int, len(r.summary.ByLatency))
	for k, v := range r.summary.ByLatency {
		out.ByLatency[k] = v
	}
	return out
}

// UniqueRecent counts distinct queries in the recent window.
func (r *Recorder) UniqueRecent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent.Len()
}

// Save writes the summary next to the index.
func (r *Recorder) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(r.summary, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Classify inspects the query shape. Identifier tokens (camelCase,
// snake_case, dotted paths) mark it lexical; plain words mark it
// semantic; both together mark it mixed.
func Classify(query string) QueryKind {
	identifiers, words := 0, 0
	for _, tok := range strings.Fields(query) {
		if looksLikeIdentifier(tok) {
			identifiers++
		} else {
			words++
		}
	}
	switch {
	case identifiers > 0 && words > 0:
		return KindMixed
	case identifiers > 0:
		return KindLexical
	default:
		return KindSemantic
	}
}

func looksLikeIdentifier(tok string) bool {
	if strings.ContainsAny(tok, "_./:()") {
		return true
	}
	hasUpper, hasLower := false, false
	for _, r := range tok {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	// camelCase or MixedCase beyond a plain capitalized word.
	if hasUpper && hasLower {
		for _, r := range tok[1:] {
			if unicode.IsUpper(r) {
				return true
			}
		}
	}
	return false
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:8])
}
