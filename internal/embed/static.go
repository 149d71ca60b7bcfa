package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Deterministic and fast, with reduced semantic quality; intended for
// offline use and tests.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time.
var _ Embedder = (*StaticEmbedder)(nil)

// staticStopWords contains common programming keywords to filter out.
var staticStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// Weights for vector generation.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	for _, token := range staticTokenize(trimmed) {
		if staticStopWords[token] {
			continue
		}
		vector[hashToIndex(token, StaticDimensions)] += staticTokenWeight
	}

	normalized := strings.ToLower(trimmed)
	for _, ngram := range extractNgrams(normalized, staticNgramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += staticNgramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-256"
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// staticTokenize splits text into lowercased alphanumeric tokens.
func staticTokenize(text string) []string {
	words := staticTokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// extractNgrams returns character n-grams of the given size.
func extractNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

// hashToIndex maps a string to a vector index via FNV-1a.
func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
