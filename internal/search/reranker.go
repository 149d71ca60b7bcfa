package search

import (
	"context"
	"strings"

	"github.com/codescout/codescout/internal/store"
)

// ContextFormat selects how much candidate metadata goes into the
// (query, context) pairs handed to the cross-encoder. Rich context
// produces materially different rankings than name-only context.
type ContextFormat string

const (
	// ContextMinimal uses only the function name and file path.
	ContextMinimal ContextFormat = "minimal"

	// ContextRich adds signature, a capped docstring and class name.
	ContextRich ContextFormat = "rich"
)

// maxDocstringContext caps the docstring portion of a rich context.
const maxDocstringContext = 100

// RerankResult is a single cross-encoder score.
type RerankResult struct {
	// Index is the original position in the input documents slice.
	Index int
	// Score is the relevance score, higher is more relevant.
	Score float64
	// Document is the original context string.
	Document string
}

// Reranker scores (query, document) pairs with a cross-encoder.
// Cross-encoders jointly encode the pair for more accurate relevance
// than bi-encoders, at higher computational cost.
type Reranker interface {
	// Rerank scores all documents against the query in one batched call
	// and returns results sorted by score descending. Ties keep input
	// order. A positive topK truncates after sorting, never before.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks whether the reranker service is reachable.
	Available(ctx context.Context) bool

	Close() error
}

// NoOpReranker returns documents in their original order. Used when
// reranking is disabled or the real service is unavailable.
type NoOpReranker struct{}

// Rerank assigns decreasing scores so the input order is preserved.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01,
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Available always returns true.
func (n *NoOpReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (n *NoOpReranker) Close() error { return nil }

var _ Reranker = (*NoOpReranker)(nil)

// BuildRerankContext assembles the context string for one candidate
// from its metadata. Minimal format is function name plus file path;
// rich format adds signature, a capped docstring and the class name.
// Missing fields are skipped, and a candidate with no usable metadata
// falls back to its ID so the pair count always matches the input.
func BuildRerankContext(c store.Candidate, format ContextFormat) string {
	var parts []string

	if fn := c.Metadata["function"]; fn != "" {
		parts = append(parts, fn)
	}
	if file := c.Metadata["file"]; file != "" {
		parts = append(parts, file)
	}

	if format == ContextRich {
		if sig := c.Metadata["signature"]; sig != "" {
			parts = append(parts, sig)
		}
		if doc := c.Metadata["docstring"]; doc != "" {
			// Cap counts characters, not bytes, so a multibyte rune is
			// never split mid-sequence.
			if runes := []rune(doc); len(runes) > maxDocstringContext {
				doc = string(runes[:maxDocstringContext])
			}
			parts = append(parts, doc)
		}
		if class := c.Metadata["class"]; class != "" {
			parts = append(parts, class)
		}
	}

	if len(parts) == 0 {
		return c.ID
	}
	return strings.Join(parts, " | ")
}
