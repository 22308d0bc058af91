// Package preflight runs environment checks before indexing: valid
// configuration, a writable data directory, registered grammars, disk
// headroom, and embedding provider reachability.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/lang"
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is the outcome of one named check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"-"`
	State    string `json:"status"`
	Detail   string `json:"detail"`
	Critical bool   `json:"critical"`
}

// minDiskBytes is the free space floor for the data directory.
const minDiskBytes = 100 * 1024 * 1024

// Checker runs the preflight checks for a project root.
type Checker struct {
	langs *lang.Registry
}

// New creates a Checker.
func New(langs *lang.Registry) *Checker {
	return &Checker{langs: langs}
}

// RunAll runs every check and returns the results in a fixed order.
func (c *Checker) RunAll(ctx context.Context, root string) []Result {
	cfg, cfgResult := c.checkConfig(root)
	results := []Result{
		cfgResult,
		c.checkDataDir(root),
		c.checkDiskSpace(root),
		c.checkGrammars(),
	}
	if cfg != nil {
		results = append(results, c.checkEmbeddings(ctx, cfg))
	}
	for i := range results {
		results[i].State = results[i].Status.String()
	}
	return results
}

// HasCriticalFailures reports whether any failed check blocks indexing.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFail && r.Critical {
			return true
		}
	}
	return false
}

func (c *Checker) checkConfig(root string) (*config.Config, Result) {
	r := Result{Name: "config", Critical: true}
	cfg, err := config.Load(root)
	if err != nil {
		r.Status = StatusFail
		r.Detail = err.Error()
		return nil, r
	}
	r.Status = StatusPass
	r.Detail = fmt.Sprintf("compaction=%s embeddings=%s", cfg.Compaction.Level, cfg.Embeddings.Provider)
	return cfg, r
}

func (c *Checker) checkDataDir(root string) Result {
	r := Result{Name: "data_dir", Critical: true}
	dir := config.DataDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Status = StatusFail
		r.Detail = err.Error()
		return r
	}

	probe := filepath.Join(dir, ".preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		r.Status = StatusFail
		r.Detail = fmt.Sprintf("not writable: %v", err)
		return r
	}
	_ = os.Remove(probe)

	r.Status = StatusPass
	r.Detail = dir
	return r
}

func (c *Checker) checkGrammars() Result {
	r := Result{Name: "grammars", Critical: true}
	names := c.langs.Names()
	if len(names) == 0 {
		r.Status = StatusFail
		r.Detail = "no languages registered"
		return r
	}
	r.Status = StatusPass
	r.Detail = strings.Join(names, ", ")
	return r
}

// checkEmbeddings probes the provider endpoint. An unreachable provider
// is a warning, not a failure: search degrades to the lexical layers.
func (c *Checker) checkEmbeddings(ctx context.Context, cfg *config.Config) Result {
	r := Result{Name: "embeddings"}
	if cfg.Embeddings.Provider == "disabled" {
		r.Status = StatusPass
		r.Detail = "disabled"
		return r
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	url := strings.TrimRight(cfg.Embeddings.OllamaHost, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.Status = StatusWarn
		r.Detail = err.Error()
		return r
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.Status = StatusWarn
		r.Detail = fmt.Sprintf("%s unreachable, search will run without vectors", cfg.Embeddings.OllamaHost)
		return r
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		r.Status = StatusWarn
		r.Detail = fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		return r
	}
	r.Status = StatusPass
	r.Detail = fmt.Sprintf("%s model=%s", cfg.Embeddings.Provider, cfg.Embeddings.Model)
	return r
}
