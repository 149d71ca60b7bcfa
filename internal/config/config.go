// Package config loads codescout configuration from YAML with
// environment variable overrides. Precedence: defaults, then
// .codescout.yaml in the project directory, then CODESCOUT_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerrors "github.com/codescout/codescout/internal/errors"
)

// Config is the complete codescout configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker" json:"reranker"`
	Expansion ExpansionConfig `yaml:"expansion" json:"expansion"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig locates the on-disk index artifacts.
type PathsConfig struct {
	// IndexDir holds the lexical index, dense index and candidate store.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// SearchConfig tunes retrieval and fusion.
type SearchConfig struct {
	// LexicalWeight is the default fusion weight for the lexical source.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// DenseWeight is the default fusion weight for the dense source.
	DenseWeight float64 `yaml:"dense_weight" json:"dense_weight"`

	// RRFConstant is the fusion smoothing constant k.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults caps the per-query result count.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// Timeout bounds a whole search call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingConfig selects and tunes the embedder.
type EmbeddingConfig struct {
	// Provider is "static" or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize bounds the embedding cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankerConfig tunes the cross-encoder integration.
type RerankerConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// Context is "minimal" or "rich".
	Context string `yaml:"context" json:"context"`
}

// ExpansionConfig tunes the LLM query expander.
type ExpansionConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Model       string        `yaml:"model" json:"model"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize   int           `yaml:"cache_size" json:"cache_size"`
	MaxVariants int           `yaml:"max_variants" json:"max_variants"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IndexDir: defaultIndexDir(),
		},
		Search: SearchConfig{
			LexicalWeight: 1.0,
			DenseWeight:   1.0,
			RRFConstant:   60,
			MaxResults:    100,
			Timeout:       5 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Reranker: RerankerConfig{
			Enabled:  false,
			Endpoint: "http://localhost:9659",
			Model:    "reranker-small",
			Timeout:  30 * time.Second,
			Context:  "rich",
		},
		Expansion: ExpansionConfig{
			Enabled:     false,
			Model:       "llama3.2:1b",
			Timeout:     2 * time.Second,
			CacheSize:   1000,
			MaxVariants: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codescout", "index")
	}
	return filepath.Join(home, ".codescout", "index")
}

// Load builds the effective configuration for a project directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads .codescout.yaml or .codescout.yml if present.
// A missing file is fine, defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".codescout.yaml", ".codescout.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c. Zero is not a
// practical value for any of these fields, so zero means "unset".
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.IndexDir != "" {
		c.Paths.IndexDir = other.Paths.IndexDir
	}

	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.DenseWeight != 0 {
		c.Search.DenseWeight = other.Search.DenseWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.Timeout != 0 {
		c.Search.Timeout = other.Search.Timeout
	}

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}

	if other.Reranker.Enabled {
		c.Reranker.Enabled = true
	}
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != 0 {
		c.Reranker.Timeout = other.Reranker.Timeout
	}
	if other.Reranker.Context != "" {
		c.Reranker.Context = other.Reranker.Context
	}

	if other.Expansion.Enabled {
		c.Expansion.Enabled = true
	}
	if other.Expansion.Model != "" {
		c.Expansion.Model = other.Expansion.Model
	}
	if other.Expansion.Timeout != 0 {
		c.Expansion.Timeout = other.Expansion.Timeout
	}
	if other.Expansion.CacheSize != 0 {
		c.Expansion.CacheSize = other.Expansion.CacheSize
	}
	if other.Expansion.MaxVariants != 0 {
		c.Expansion.MaxVariants = other.Expansion.MaxVariants
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies CODESCOUT_* environment variables, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESCOUT_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("CODESCOUT_DENSE_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 {
			c.Search.DenseWeight = w
		}
	}
	if v := os.Getenv("CODESCOUT_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("CODESCOUT_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("CODESCOUT_EMBEDDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("CODESCOUT_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("CODESCOUT_RERANKER_ENABLED"); v != "" {
		c.Reranker.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODESCOUT_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("CODESCOUT_EXPANSION_ENABLED"); v != "" {
		c.Expansion.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODESCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 || c.Search.DenseWeight < 0 {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			"search weights must be non-negative", nil)
	}
	if c.Search.LexicalWeight == 0 && c.Search.DenseWeight == 0 {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			"at least one search weight must be positive", nil)
	}
	if c.Search.RRFConstant <= 0 {
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			"rrf_constant must be positive", nil)
	}
	switch c.Embedding.Provider {
	case "static", "ollama":
	default:
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q (use static or ollama)", c.Embedding.Provider), nil)
	}
	switch c.Reranker.Context {
	case "minimal", "rich":
	default:
		return cerrors.New(cerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown reranker context %q (use minimal or rich)", c.Reranker.Context), nil)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeConfigInvalid, "failed to encode config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
