package search

import (
	"context"
	"log/slog"
	"strings"
)

// Route is the coarse strategy picked by the AdaptiveSearcher. It is a
// deliberately separate taxonomy from QueryClass: the two routing
// layers predate each other and their observed quality trade-offs
// depend on keeping the rule sets distinct.
type Route string

const (
	// RouteHowTo sends procedural questions to hybrid search without
	// reranking, sufficient quality at lower latency.
	RouteHowTo Route = "HOW_TO"

	// RouteSpecificTerm sends short identifier-ish queries straight to
	// the dense index, bypassing fusion entirely.
	RouteSpecificTerm Route = "SPECIFIC_TERM"

	// RouteComplex sends structurally loaded queries to hybrid search
	// with reranking.
	RouteComplex Route = "COMPLEX"

	// RouteDefault is hybrid search without reranking.
	RouteDefault Route = "DEFAULT"
)

// howToIndicators mark explicit procedural questions.
var howToIndicators = []string{
	"how to", "how do", "how can", "how should",
	"how would", "how does", "how will",
}

// shortPrefixTerms are terms that keep a two-token query in the
// specific-term route.
var shortPrefixTerms = map[string]struct{}{
	"api":        {},
	"http":       {},
	"web":        {},
	"background": {},
	"file":       {},
}

// complexKeywords mark code-structure queries worth the rerank cost.
var complexKeywords = []string{
	"async", "await", "decorator", "pattern", "context manager",
	"generator", "function", "handler", "middleware",
	"lifecycle", "injection", "validation",
}

// AdaptiveSearcher routes each query to a whole retrieval strategy
// before hybrid search gets involved. It is the coarse counterpart of
// the Classifier and is used by callers who want per-query strategy
// selection rather than per-query weight tuning.
type AdaptiveSearcher struct {
	engine      *Engine
	hasReranker bool
}

var _ Searcher = (*AdaptiveSearcher)(nil)

// NewAdaptiveSearcher wraps an engine with coarse routing.
func NewAdaptiveSearcher(engine *Engine) *AdaptiveSearcher {
	return &AdaptiveSearcher{
		engine:      engine,
		hasReranker: engine.reranker != nil,
	}
}

// Search routes the query and delegates to the engine with the
// strategy the route calls for.
func (a *AdaptiveSearcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*Result, error) {
	route := a.determineRoute(query)

	slog.Debug("query_routed",
		slog.String("query", truncateForLog(query, 50)),
		slog.String("route", string(route)))

	cfg := a.configForRoute(route)
	opts.Config = &cfg
	opts.UseClassifier = false
	opts.Rerank = nil

	return a.engine.Search(ctx, query, opts)
}

// determineRoute applies the routing rules in fixed order. HOW_TO is
// checked first because it is an explicit signal: "how to authenticate
// users" must not fall into COMPLEX just because it has 2-4 meaningful
// tokens. Then SPECIFIC_TERM, then COMPLEX, else DEFAULT.
func (a *AdaptiveSearcher) determineRoute(query string) Route {
	lower := strings.ToLower(strings.TrimSpace(query))
	tokens := strings.Fields(lower)

	for _, indicator := range howToIndicators {
		if strings.Contains(lower, indicator) {
			return RouteHowTo
		}
	}

	if len(tokens) == 1 {
		return RouteSpecificTerm
	}
	if len(tokens) == 2 {
		for _, t := range tokens {
			if _, ok := shortPrefixTerms[t]; ok {
				return RouteSpecificTerm
			}
		}
	}

	for _, keyword := range complexKeywords {
		if containsWord(lower, keyword) {
			return RouteComplex
		}
	}
	if len(tokens) >= 2 && len(tokens) <= 4 {
		return RouteComplex
	}

	return RouteDefault
}

// configForRoute maps a route to the engine configuration it runs with.
func (a *AdaptiveSearcher) configForRoute(route Route) SearchConfig {
	switch route {
	case RouteSpecificTerm:
		return SearchConfig{
			UseLexical:    false,
			UseDense:      true,
			LexicalWeight: 0.0,
			DenseWeight:   1.0,
			UseExpansion:  false,
			UseReranking:  false,
		}
	case RouteComplex:
		return SearchConfig{
			UseLexical:    true,
			UseDense:      true,
			LexicalWeight: 1.0,
			DenseWeight:   1.0,
			UseExpansion:  false,
			// Falls back to plain hybrid when no reranker is wired.
			UseReranking: a.hasReranker,
		}
	default: // RouteHowTo, RouteDefault
		return SearchConfig{
			UseLexical:    true,
			UseDense:      true,
			LexicalWeight: 1.0,
			DenseWeight:   1.0,
			UseExpansion:  false,
			UseReranking:  false,
		}
	}
}
