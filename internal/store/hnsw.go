package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/codescout/codescout/internal/embed"
	cerrors "github.com/codescout/codescout/internal/errors"
)

// HNSWDenseIndex implements DenseIndex on a coder/hnsw graph. It owns
// its embedder and converts candidate text and queries to vectors
// internally, so callers only ever deal in strings.
type HNSWDenseIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder embed.Embedder
	config   DenseConfig

	// string ID <-> internal graph key
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// candidate metadata retained for search-time filtering
	metadata map[string]map[string]string

	built  bool
	closed bool
}

// hnswMetadata is the gob-persisted sidecar for ID mappings.
type hnswMetadata struct {
	IDMap    map[string]uint64
	Metadata map[string]map[string]string
	NextKey  uint64
	Config   DenseConfig
}

// NewHNSWDenseIndex creates a dense index around the given embedder.
// The embedder's dimensions override cfg.Dimensions when they disagree.
func NewHNSWDenseIndex(cfg DenseConfig, embedder embed.Embedder) (*HNSWDenseIndex, error) {
	if embedder == nil {
		return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable,
			"dense index requires an embedder", nil)
	}

	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 40
	}
	if dims := embedder.Dimensions(); dims > 0 {
		cfg.Dimensions = dims
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWDenseIndex{
		graph:    graph,
		embedder: embedder,
		config:   cfg,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		metadata: make(map[string]map[string]string),
	}, nil
}

// Index embeds candidate text in a single batch and adds the vectors to
// the graph. Re-indexing an existing ID replaces it.
func (s *HNSWDenseIndex) Index(ctx context.Context, candidates []Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			"failed to embed candidates", err)
	}
	if len(vectors) != len(candidates) {
		return cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d candidates", len(vectors), len(candidates)), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, c := range candidates {
		// Lazy replacement: orphan the old graph node instead of
		// deleting it, deleting the last node corrupts the graph.
		if existingKey, exists := s.idMap[c.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, c.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))

		s.idMap[c.ID] = key
		s.keyMap[key] = c.ID
		if len(c.Metadata) > 0 {
			meta := make(map[string]string, len(c.Metadata))
			for k, v := range c.Metadata {
				meta[k] = v
			}
			s.metadata[c.ID] = meta
		}
	}

	s.built = true
	return nil
}

// Search embeds the query and returns up to topK nearest neighbors.
// Non-empty filters restrict hits to candidates whose metadata matches
// every key/value pair exactly.
func (s *HNSWDenseIndex) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]DenseResult, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}
	if !s.built {
		s.mu.RUnlock()
		return nil, cerrors.New(cerrors.ErrCodeIndexNotBuilt,
			"dense index has not been built", nil)
	}
	s.mu.RUnlock()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeEmbeddingFailed,
			"failed to embed query", err)
	}

	return s.SearchVector(ctx, vector, topK, filters)
}

// SearchVector searches with a pre-computed query vector.
func (s *HNSWDenseIndex) SearchVector(ctx context.Context, query []float32, topK int, filters map[string]string) ([]DenseResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []DenseResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalized)
	}

	// Over-fetch when filtering so post-filter results can still fill topK.
	fetchK := topK
	if len(filters) > 0 {
		fetchK = topK * 4
	}

	nodes := s.graph.Search(normalized, fetchK)

	results := make([]DenseResult, 0, topK)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			// Orphaned by lazy deletion
			continue
		}
		if !s.matchesFilters(id, filters) {
			continue
		}

		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, DenseResult{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

// matchesFilters reports whether a candidate's metadata satisfies every
// filter pair. Callers hold the read lock.
func (s *HNSWDenseIndex) matchesFilters(id string, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	meta := s.metadata[id]
	for k, want := range filters {
		if meta[k] != want {
			return false
		}
	}
	return true
}

// Delete removes candidates by ID using lazy deletion.
func (s *HNSWDenseIndex) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.metadata, id)
		}
	}

	return nil
}

// Count returns the number of live candidates.
func (s *HNSWDenseIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Contains reports whether an ID is indexed.
func (s *HNSWDenseIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// Save persists the graph and its ID mappings, using temp-file-and-
// rename so a crash never leaves a half-written index.
func (s *HNSWDenseIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save index metadata: %w", err)
	}
	return nil
}

func (s *HNSWDenseIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:    s.idMap,
		Metadata: s.metadata,
		NextKey:  s.nextKey,
		Config:   s.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp metadata file", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and ID mappings from disk.
func (s *HNSWDenseIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cerrors.New(cerrors.ErrCodeIndexUnavailable, "dense index is closed", nil)
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load index metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// Import needs an io.ByteReader
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.built = s.graph.Len() > 0
	return nil
}

func (s *HNSWDenseIndex) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode index metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.metadata = meta.Metadata
	if s.metadata == nil {
		s.metadata = make(map[string]map[string]string)
	}
	s.nextKey = meta.NextKey
	s.config = meta.Config

	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases the graph and the owned embedder.
func (s *HNSWDenseIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil

	return s.embedder.Close()
}

var _ DenseIndex = (*HNSWDenseIndex)(nil)

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a 0-1 similarity score.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		// cosine distance ranges 0 (identical) to 2 (opposite)
		return 1.0 - distance/2.0
	}
}
