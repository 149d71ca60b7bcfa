// Package store provides the persistence layer for search candidates:
// a Bleve-backed lexical index, an HNSW dense index, and a SQLite
// candidate store used for result enrichment.
package store

import (
	"context"
	"fmt"
)

// Candidate is a retrievable code snippet with its descriptive metadata.
// Metadata keys in common use: "function", "file", "signature",
// "docstring", "class", "language".
type Candidate struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LexicalResult is a single keyword search hit.
type LexicalResult struct {
	ID           string
	Score        float64  // BM25 relevance, higher is better
	MatchedTerms []string // terms from the query that matched
}

// DenseResult is a single vector search hit.
type DenseResult struct {
	ID       string
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// LexicalIndex is the keyword retrieval backend.
type LexicalIndex interface {
	// Index adds or updates candidates in the index.
	Index(ctx context.Context, candidates []Candidate) error

	// Search returns up to topK hits ranked by relevance.
	// Searching an index that has never been built returns an
	// index-not-built error.
	Search(ctx context.Context, query string, topK int) ([]LexicalResult, error)

	// Delete removes candidates by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed candidates.
	Count() (uint64, error)

	Close() error
}

// DenseIndex is the vector retrieval backend. Implementations own their
// embedder and embed both documents and queries internally.
type DenseIndex interface {
	// Index embeds candidate text and adds the vectors to the graph.
	Index(ctx context.Context, candidates []Candidate) error

	// Search embeds the query and returns up to topK nearest neighbors.
	// Filters, when non-empty, restrict hits to candidates whose
	// metadata matches every key/value pair exactly.
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]DenseResult, error)

	// Delete removes candidates by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed candidates.
	Count() int

	Close() error
}

// CandidateStore persists full candidate records for enrichment and
// rerank context assembly.
type CandidateStore interface {
	SaveCandidates(ctx context.Context, candidates []Candidate) error

	// GetCandidate returns a single candidate, or a candidate-not-found
	// error when the ID is unknown.
	GetCandidate(ctx context.Context, id string) (*Candidate, error)

	// GetCandidates returns the candidates for the given IDs. Unknown
	// IDs are skipped; the result preserves input order for known IDs.
	GetCandidates(ctx context.Context, ids []string) ([]Candidate, error)

	Count(ctx context.Context) (int, error)

	Close() error
}

// LexicalConfig configures the Bleve lexical index.
type LexicalConfig struct {
	// Path is the on-disk index directory. Empty means in-memory.
	Path string

	// StopWords filtered during analysis. Defaults to DefaultCodeStopWords.
	StopWords []string
}

// DefaultLexicalConfig returns the standard lexical index configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		StopWords: DefaultCodeStopWords,
	}
}

// DenseConfig configures the HNSW dense index.
type DenseConfig struct {
	// Dimensions must match the embedder's output width.
	Dimensions int

	// Metric is "cos" (default) or "l2".
	Metric string

	// M is the maximum number of graph neighbors per node.
	M int

	// EfSearch is the candidate pool size during search.
	EfSearch int
}

// DefaultDenseConfig returns the standard dense index configuration
// for the given embedding width.
func DefaultDenseConfig(dimensions int) DenseConfig {
	return DenseConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   40,
	}
}

// DefaultCodeStopWords are language keywords and filler identifiers that
// carry no retrieval signal in code search.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// ErrDimensionMismatch reports a vector whose width does not match the
// index configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
