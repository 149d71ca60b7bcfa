package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestRouter(t *testing.T, hasReranker bool) *AdaptiveSearcher {
	t.Helper()
	return &AdaptiveSearcher{hasReranker: hasReranker}
}

func TestRouter_HowTo(t *testing.T) {
	r := newTestRouter(t, true)

	tests := []struct {
		name  string
		query string
	}{
		{"how to", "how to authenticate users"},
		{"how do", "how do sessions expire"},
		{"how can", "how can I stream responses"},
		{"how does", "how does the cache evict entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, RouteHowTo, r.determineRoute(tt.query))
		})
	}
}

func TestRouter_HowToBeatsComplex(t *testing.T) {
	r := newTestRouter(t, true)

	// Three meaningful tokens plus a complex keyword, but the explicit
	// procedural phrasing wins.
	assert.Equal(t, RouteHowTo, r.determineRoute("how to write a decorator"))
	assert.Equal(t, RouteHowTo, r.determineRoute("how does middleware run"))
}

func TestRouter_SpecificTerm(t *testing.T) {
	r := newTestRouter(t, true)

	// Any single token routes to dense-only lookup.
	assert.Equal(t, RouteSpecificTerm, r.determineRoute("HTTPException"))
	assert.Equal(t, RouteSpecificTerm, r.determineRoute("routing"))

	// Two tokens qualify only when one is a known short prefix term.
	assert.Equal(t, RouteSpecificTerm, r.determineRoute("api server"))
	assert.Equal(t, RouteSpecificTerm, r.determineRoute("background tasks"))
	assert.Equal(t, RouteSpecificTerm, r.determineRoute("file upload"))

	// Two arbitrary tokens do not.
	assert.NotEqual(t, RouteSpecificTerm, r.determineRoute("error handling"))
}

func TestRouter_Complex(t *testing.T) {
	r := newTestRouter(t, true)

	// Keyword-triggered.
	assert.Equal(t, RouteComplex, r.determineRoute("async request handler design"))
	assert.Equal(t, RouteComplex, r.determineRoute("dependency injection examples"))
	assert.Equal(t, RouteComplex, r.determineRoute("request validation with models"))

	// Token-count-triggered: two to four tokens without keywords.
	assert.Equal(t, RouteComplex, r.determineRoute("error handling"))
	assert.Equal(t, RouteComplex, r.determineRoute("database connection pool setup"))
}

func TestRouter_Default(t *testing.T) {
	r := newTestRouter(t, true)

	// Five or more tokens without procedural phrasing or keywords.
	assert.Equal(t, RouteDefault,
		r.determineRoute("users report slow responses from the search endpoint"))

	// Empty input falls through every rule.
	assert.Equal(t, RouteDefault, r.determineRoute(""))
	assert.Equal(t, RouteDefault, r.determineRoute("   "))
}

func TestRouter_ConfigForRoute(t *testing.T) {
	r := newTestRouter(t, true)

	specific := r.configForRoute(RouteSpecificTerm)
	assert.False(t, specific.UseLexical)
	assert.True(t, specific.UseDense)
	assert.False(t, specific.UseReranking)

	complexCfg := r.configForRoute(RouteComplex)
	assert.True(t, complexCfg.UseLexical)
	assert.True(t, complexCfg.UseDense)
	assert.True(t, complexCfg.UseReranking)

	for _, route := range []Route{RouteHowTo, RouteDefault} {
		cfg := r.configForRoute(route)
		assert.True(t, cfg.UseLexical)
		assert.True(t, cfg.UseDense)
		assert.False(t, cfg.UseReranking)
		assert.False(t, cfg.UseExpansion)
	}
}

func TestRouter_ComplexWithoutReranker(t *testing.T) {
	r := newTestRouter(t, false)

	// The route is unchanged, but reranking is not requested when no
	// reranker is wired.
	assert.Equal(t, RouteComplex, r.determineRoute("async request handler design"))
	cfg := r.configForRoute(RouteComplex)
	assert.False(t, cfg.UseReranking)
}
