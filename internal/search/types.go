// Package search implements the retrieval core: weighted Reciprocal
// Rank Fusion over lexical and dense rank lists, a rule-based query
// classifier, the hybrid search orchestrator, and the coarser adaptive
// router that picks a whole strategy per query.
package search

import (
	"context"
	"time"

	"github.com/codescout/codescout/internal/store"
)

// Result is a single ranked search hit returned to callers. It carries
// the fused score, the per-source ranks it was derived from, and, when
// reranking ran, the cross-encoder score.
type Result struct {
	// Candidate is the full record from the candidate store. Only the
	// ID is guaranteed when no store is configured.
	Candidate store.Candidate

	// FusionScore is the summed weighted RRF contribution.
	FusionScore float64

	// LexicalScore is the raw score from the lexical index.
	LexicalScore float64

	// LexicalRank is the position in the lexical list (1-indexed, 0 if
	// absent). Zero means the candidate did not appear in that source,
	// never "rank zero".
	LexicalRank int

	// DenseScore is the similarity score from the dense index (0-1).
	DenseScore float64

	// DenseRank is the position in the dense list (1-indexed, 0 if absent).
	DenseRank int

	// RerankScore is set only when the cross-encoder scored this result.
	RerankScore *float64

	// InBothLists reports whether the candidate appeared in both sources.
	InBothLists bool

	// MatchedTerms are the lexical query terms that matched.
	MatchedTerms []string
}

// Weights configures the relative importance of the two sources.
type Weights struct {
	Lexical float64
	Dense   float64
}

// EqualWeights is the default: both sources count the same.
func EqualWeights() Weights {
	return Weights{Lexical: 1.0, Dense: 1.0}
}

// QueryClass is the fine-grained query-shape category produced by the
// Classifier.
type QueryClass string

const (
	// ClassSpecificTerm is an identifier-like query, best served by
	// exact lexical match.
	ClassSpecificTerm QueryClass = "SPECIFIC_TERM"

	// ClassSemantic is a conversational, natural-language query.
	ClassSemantic QueryClass = "SEMANTIC"

	// ClassConcept is a general noun query like "routing".
	ClassConcept QueryClass = "CONCEPT"

	// ClassCodePattern is a query about a code structure like "async"
	// or "decorator", where the concept may not appear verbatim.
	ClassCodePattern QueryClass = "CODE_PATTERN"
)

// SearchConfig selects the sources, weights and enhancement stages for
// one search. Produced once per classification, never mutated.
type SearchConfig struct {
	UseLexical    bool
	UseDense      bool
	LexicalWeight float64
	DenseWeight   float64
	UseExpansion  bool
	UseReranking  bool
}

// DefaultSearchConfig enables both sources at equal weight with
// expansion and reranking on.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		UseLexical:    true,
		UseDense:      true,
		LexicalWeight: 1.0,
		DenseWeight:   1.0,
		UseExpansion:  true,
		UseReranking:  true,
	}
}

// Weights returns the config's source weights as a Weights value.
func (c SearchConfig) Weights() Weights {
	return Weights{Lexical: c.LexicalWeight, Dense: c.DenseWeight}
}

// SearchOptions configures a single Search call.
type SearchOptions struct {
	// Limit is the maximum number of results (default from EngineConfig).
	Limit int

	// UseClassifier routes the query through the classifier to pick a
	// SearchConfig; when false the default config is used.
	UseClassifier bool

	// Rerank overrides the config's reranking decision when non-nil.
	Rerank *bool

	// Filters restrict dense retrieval to candidates whose metadata
	// matches every key/value pair.
	Filters map[string]string

	// Config overrides classification entirely when non-nil.
	Config *SearchConfig
}

// EngineConfig configures the hybrid search engine.
type EngineConfig struct {
	// DefaultLimit is the result count when SearchOptions.Limit <= 0.
	DefaultLimit int

	// MaxLimit caps SearchOptions.Limit.
	MaxLimit int

	// RRFConstant is the fusion smoothing constant k (default: 60).
	RRFConstant int

	// DefaultWeights are the source weights used when neither an
	// explicit config nor the classifier picks them (default: equal).
	DefaultWeights Weights

	// RetrievalMultiplier widens per-source retrieval depth relative to
	// the requested limit (default: 2).
	RetrievalMultiplier int

	// RerankMultiplier replaces RetrievalMultiplier when reranking will
	// run, since reranking benefits from a wider pool (default: 3).
	RerankMultiplier int

	// MaxExpansionVariants bounds how many paraphrases are retrieved in
	// addition to the original query (default: 3).
	MaxExpansionVariants int

	// MaxConcurrentVariants bounds variant fan-out (default: 4).
	MaxConcurrentVariants int

	// SearchTimeout bounds the whole search call (default: 5s).
	SearchTimeout time.Duration

	// RerankContext selects minimal or rich rerank context strings.
	RerankContext ContextFormat
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:          10,
		MaxLimit:              100,
		RRFConstant:           DefaultRRFConstant,
		DefaultWeights:        EqualWeights(),
		RetrievalMultiplier:   2,
		RerankMultiplier:      3,
		MaxExpansionVariants:  3,
		MaxConcurrentVariants: 4,
		SearchTimeout:         5 * time.Second,
		RerankContext:         ContextRich,
	}
}

// Expander produces paraphrases of a query. Best effort: on any
// failure implementations return just the original query.
type Expander interface {
	// Expand returns up to n paraphrases, never including the original.
	Expand(ctx context.Context, query string, n int) ([]string, error)

	Close() error
}

// Searcher is the caller-facing contract shared by the hybrid engine
// and the adaptive router.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]*Result, error)
}
