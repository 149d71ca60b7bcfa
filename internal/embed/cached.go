package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultEmbeddingCacheSize is the default number of embeddings to cache.
// At 768 dimensions * 4 bytes * 1000 entries this is roughly 3MB.
const DefaultEmbeddingCacheSize = 1000

// fifoCache is a bounded map with insertion-order eviction.
// When full, the earliest-inserted entry is evicted. This is deliberately
// NOT recency-of-use LRU: it reproduces the cache behavior the retrieval
// quality numbers were measured against. Safe for concurrent use.
type fifoCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string][]float32
	order   []string
}

func newFIFOCache(maxSize int) *fifoCache {
	return &fifoCache{
		maxSize: maxSize,
		entries: make(map[string][]float32, maxSize),
		order:   make([]string, 0, maxSize),
	}
}

func (c *fifoCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fifoCache) add(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		return
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

func (c *fifoCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedEmbedder wraps an Embedder with a bounded memoization cache to
// avoid recomputing embeddings for repeated query strings.
type CachedEmbedder struct {
	inner Embedder
	cache *fifoCache
}

// Verify interface implementation at compile time.
var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder creates a cached embedder wrapping the given embedder.
// Cache size determines the number of unique texts to keep in memory.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	return &CachedEmbedder{
		inner: inner,
		cache: newFIFOCache(cacheSize),
	}
}

// cacheKey generates a unique key for the cache based on text and model.
// Using SHA256 ensures consistent key length and handles arbitrary text.
func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns cached embedding if available, otherwise computes and caches.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.add(key, vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts, caching each result.
// Only cache misses are sent to the underlying model; the output order is
// reassembled to match the input order across hits and misses.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = newEmbeddings[j]
		c.cache.add(c.cacheKey(texts[idx]), newEmbeddings[j])
	}

	return results, nil
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Close releases resources and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// CacheLen returns the number of cached embeddings.
func (c *CachedEmbedder) CacheLen() int {
	return c.cache.len()
}
