package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Query expander configuration defaults.
const (
	DefaultExpanderModel     = "llama3.2:1b"
	DefaultExpanderTimeout   = 2 * time.Second
	DefaultExpanderCacheSize = 1000
	DefaultOllamaHost        = "http://localhost:11434"

	// maxExpandableTokens: longer queries already carry enough signal,
	// and paraphrasing them mostly adds noise.
	maxExpandableTokens = 5
)

// ExpanderConfig holds configuration for the LLM query expander.
type ExpanderConfig struct {
	// Model is the Ollama model used for paraphrasing.
	Model string

	// Timeout is the strict per-call budget. The expander is the
	// highest-latency step in a search and must never block it.
	Timeout time.Duration

	// CacheSize is the LRU cache size for expansion results.
	CacheSize int

	// OllamaHost is the Ollama API base URL.
	OllamaHost string
}

// DefaultExpanderConfig returns sensible defaults.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		Model:      DefaultExpanderModel,
		Timeout:    DefaultExpanderTimeout,
		CacheSize:  DefaultExpanderCacheSize,
		OllamaHost: DefaultOllamaHost,
	}
}

// expansionPrompt asks for short paraphrases, one per line.
const expansionPrompt = `Rephrase this code search query %d different ways.
Keep each rephrasing short (under 6 words) and focused on code.
Reply with one rephrasing per line, nothing else.

Query: %s`

// LLMExpander produces query paraphrases via Ollama. Results are
// LRU-cached; any failure yields no paraphrases rather than an aborted
// search.
type LLMExpander struct {
	client *http.Client
	config ExpanderConfig
	cache  *lru.Cache[string, []string]
}

var _ Expander = (*LLMExpander)(nil)

// NewLLMExpander creates an Ollama-backed query expander.
func NewLLMExpander(cfg ExpanderConfig) *LLMExpander {
	if cfg.Model == "" {
		cfg.Model = DefaultExpanderModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExpanderTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultExpanderCacheSize
	}
	if cfg.OllamaHost == "" {
		cfg.OllamaHost = DefaultOllamaHost
	}

	cache, _ := lru.New[string, []string](cfg.CacheSize)

	return &LLMExpander{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		cache:  cache,
	}
}

type expandGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type expandGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Expand returns up to n paraphrases of the query, never the original.
// Long queries are not expanded at all. Errors are returned for the
// caller to log; the correct fallback is to search with the original
// query only.
func (e *LLMExpander) Expand(ctx context.Context, query string, n int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" || n <= 0 {
		return nil, nil
	}
	if len(strings.Fields(query)) > maxExpandableTokens {
		return nil, nil
	}

	cacheKey := strings.ToLower(query)
	if cached, ok := e.cache.Get(cacheKey); ok {
		if len(cached) > n {
			cached = cached[:n]
		}
		return cached, nil
	}

	prompt := fmt.Sprintf(expansionPrompt, n, query)
	reqBody := expandGenerateRequest{
		Model:  e.config.Model,
		Prompt: prompt,
		Stream: false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal expansion request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost,
		e.config.OllamaHost+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create expansion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute expansion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("expansion failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result expandGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode expansion response: %w", err)
	}

	variants := parseExpansionResponse(result.Response, query, n)
	e.cache.Add(cacheKey, variants)

	slog.Debug("query_expanded",
		slog.String("query", query),
		slog.Int("variants", len(variants)))

	return variants, nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (e *LLMExpander) Close() error {
	return nil
}

// parseExpansionResponse extracts paraphrase lines from model output,
// stripping list numbering and quotes, skipping empties, duplicates of
// the original, and lines that ballooned past a sensible length.
func parseExpansionResponse(response, original string, n int) []string {
	lowerOriginal := strings.ToLower(original)
	var variants []string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		line = strings.Trim(line, `"'`)
		if line == "" {
			continue
		}
		if strings.ToLower(line) == lowerOriginal {
			continue
		}
		if len(strings.Fields(line)) > maxExpandableTokens+3 {
			continue
		}

		variants = append(variants, line)
		if len(variants) == n {
			break
		}
	}

	return variants
}
