// Package config loads and validates codescope configuration.
//
// Configuration is read from .codescope.yaml at the project root, with
// struct defaults applied for anything unset. All durations are YAML
// strings ("500ms", "2s") parsed at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".codescope.yaml"

// DataDirName is the per-project index data directory.
const DataDirName = ".codescope"

// Config represents the complete codescope configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Compaction CompactionConfig `yaml:"compaction"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	LogLevel   string           `yaml:"log_level"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// IndexingConfig configures the indexing pipeline.
type IndexingConfig struct {
	// Workers is the worker-pool size for per-file pipelines (0 = NumCPU).
	Workers int `yaml:"workers"`

	// MaxFileSize is the largest file indexed, in bytes (default: 10MB).
	MaxFileSize int64 `yaml:"max_file_size"`

	// ParseTimeout bounds a single parse (default: "10s").
	ParseTimeout string `yaml:"parse_timeout"`

	// AstCacheBytes is the AST cache byte budget (default: 256MB).
	AstCacheBytes int64 `yaml:"ast_cache_bytes"`

	// WatchDebounce coalesces rapid writes to the same path (default: "500ms").
	WatchDebounce string `yaml:"watch_debounce"`

	// RespectGitignore enables .gitignore handling (default: true).
	RespectGitignore *bool `yaml:"respect_gitignore"`
}

// CompactionConfig configures the chunk compactor.
type CompactionConfig struct {
	// Level is the compaction level: "light", "standard", or "maximum".
	Level string `yaml:"level"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "disabled".
	Provider string `yaml:"provider"`

	// Model is the embedding model identifier.
	Model string `yaml:"model"`

	// Dimensions is the embedding vector dimension.
	Dimensions int `yaml:"dimensions"`

	// BatchSize is texts per provider request (default: 32).
	BatchSize int `yaml:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`

	// CacheSize is the embedding cache capacity in entries (default: 4096).
	CacheSize int `yaml:"cache_size"`

	// MaxRetries is the retry attempt cap for transient provider failures.
	MaxRetries int `yaml:"max_retries"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant"`

	// MaxResults caps the result limit a caller may request (default: 100).
	MaxResults int `yaml:"max_results"`

	// DefaultLimit is the result count when the caller gives none (default: 10).
	DefaultLimit int `yaml:"default_limit"`
}

// defaultExcludePatterns are always excluded from discovery.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/" + DataDirName + "/**",
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	respect := true
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: append([]string(nil), defaultExcludePatterns...),
		},
		Indexing: IndexingConfig{
			Workers:          runtime.NumCPU(),
			MaxFileSize:      10 * 1024 * 1024,
			ParseTimeout:     "10s",
			AstCacheBytes:    256 * 1024 * 1024,
			WatchDebounce:    "500ms",
			RespectGitignore: &respect,
		},
		Compaction: CompactionConfig{
			Level: "standard",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "disabled",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  4096,
			MaxRetries: 3,
		},
		Search: SearchConfig{
			RRFConstant:  60,
			MaxResults:   100,
			DefaultLimit: 10,
		},
		LogLevel: "info",
	}
}

// Load reads the config file under root, falling back to defaults when the
// file does not exist. A present-but-invalid file is an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = d.Indexing.Workers
	}
	if c.Indexing.MaxFileSize <= 0 {
		c.Indexing.MaxFileSize = d.Indexing.MaxFileSize
	}
	if c.Indexing.ParseTimeout == "" {
		c.Indexing.ParseTimeout = d.Indexing.ParseTimeout
	}
	if c.Indexing.AstCacheBytes <= 0 {
		c.Indexing.AstCacheBytes = d.Indexing.AstCacheBytes
	}
	if c.Indexing.WatchDebounce == "" {
		c.Indexing.WatchDebounce = d.Indexing.WatchDebounce
	}
	if c.Indexing.RespectGitignore == nil {
		c.Indexing.RespectGitignore = d.Indexing.RespectGitignore
	}
	if c.Compaction.Level == "" {
		c.Compaction.Level = d.Compaction.Level
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = d.Embeddings.Provider
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = d.Embeddings.Model
	}
	if c.Embeddings.Dimensions <= 0 {
		c.Embeddings.Dimensions = d.Embeddings.Dimensions
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = d.Embeddings.BatchSize
	}
	if c.Embeddings.OllamaHost == "" {
		c.Embeddings.OllamaHost = d.Embeddings.OllamaHost
	}
	if c.Embeddings.CacheSize <= 0 {
		c.Embeddings.CacheSize = d.Embeddings.CacheSize
	}
	if c.Embeddings.MaxRetries <= 0 {
		c.Embeddings.MaxRetries = d.Embeddings.MaxRetries
	}
	if c.Search.RRFConstant <= 0 {
		c.Search.RRFConstant = d.Search.RRFConstant
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = d.Search.MaxResults
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = d.Search.DefaultLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if len(c.Paths.Exclude) == 0 {
		c.Paths.Exclude = append([]string(nil), defaultExcludePatterns...)
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.Compaction.Level {
	case "light", "standard", "maximum":
	default:
		return fmt.Errorf("invalid compaction level %q (want light, standard, or maximum)", c.Compaction.Level)
	}

	switch c.Embeddings.Provider {
	case "ollama", "disabled":
	default:
		return fmt.Errorf("invalid embeddings provider %q (want ollama or disabled)", c.Embeddings.Provider)
	}

	if _, err := time.ParseDuration(c.Indexing.ParseTimeout); err != nil {
		return fmt.Errorf("invalid parse_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Indexing.WatchDebounce); err != nil {
		return fmt.Errorf("invalid watch_debounce: %w", err)
	}

	return nil
}

// GitignoreEnabled reports whether .gitignore rules apply.
func (c *Config) GitignoreEnabled() bool {
	return c.Indexing.RespectGitignore == nil || *c.Indexing.RespectGitignore
}

// ParseTimeoutDuration returns the parse timeout as a duration.
func (c *Config) ParseTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Indexing.ParseTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// WatchDebounceDuration returns the debounce window as a duration.
func (c *Config) WatchDebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Indexing.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// DataDir returns the index data directory for a project root.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// Save writes the configuration to the project root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(root, ConfigFileName), data, 0o644)
}
