package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Cross-encoder reranker configuration defaults.
const (
	DefaultRerankerEndpoint = "http://localhost:9659"
	DefaultRerankerModel    = "reranker-small"
	DefaultRerankerTimeout  = 30 * time.Second
)

// CrossEncoderConfig holds configuration for the HTTP reranker.
type CrossEncoderConfig struct {
	// Endpoint is the reranker server URL.
	Endpoint string

	// Model is the reranker model alias.
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// SkipHealthCheck skips the startup health check (for testing).
	SkipHealthCheck bool
}

// DefaultCrossEncoderConfig returns default reranker configuration.
func DefaultCrossEncoderConfig() CrossEncoderConfig {
	return CrossEncoderConfig{
		Endpoint: DefaultRerankerEndpoint,
		Model:    DefaultRerankerModel,
		Timeout:  DefaultRerankerTimeout,
	}
}

// CrossEncoderReranker implements Reranker against an HTTP
// cross-encoder service exposing /health and /rerank.
type CrossEncoderReranker struct {
	client   *http.Client
	config   CrossEncoderConfig
	endpoint string
	mu       sync.RWMutex
	closed   bool
}

var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates a reranker client and verifies the
// service is reachable unless the health check is skipped.
func NewCrossEncoderReranker(ctx context.Context, cfg CrossEncoderConfig) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &CrossEncoderReranker{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("reranker health check failed: %w", err)
		}
	}

	slog.Debug("cross_encoder_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return r, nil
}

func (r *CrossEncoderReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to reranker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranker unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index    int     `json:"index"`
		Score    float64 `json:"score"`
		Document string  `json:"document"`
	} `json:"results"`
	Model string `json:"model"`
	Count int    `json:"count"`
}

// Rerank scores all documents in one batched call.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	reqBody := rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.config.Model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]RerankResult, len(result.Results))
	for i, item := range result.Results {
		results[i] = RerankResult{
			Index:    item.Index,
			Score:    item.Score,
			Document: item.Document,
		}
	}

	// The service is not trusted to order its output. Sort here so the
	// final ranking is determined by score alone, ties keeping the
	// service's order, and truncate only after sorting.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	slog.Debug("rerank_complete",
		slog.String("query", truncateForLog(query, 50)),
		slog.Int("doc_count", len(documents)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// Available checks whether the reranker service is reachable.
func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.healthCheck(checkCtx) == nil
}

// Close releases idle connections.
func (r *CrossEncoderReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	return nil
}

// truncateForLog truncates a string for log output.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
