package search

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout/codescout/internal/store"
)

func TestNoOpReranker_PreservesOrder(t *testing.T) {
	r := &NoOpReranker{}
	docs := []string{"first", "second", "third"}

	results, err := r.Rerank(context.Background(), "query", docs, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, docs[i], res.Document)
		if i > 0 {
			assert.Less(t, res.Score, results[i-1].Score)
		}
	}
}

func TestNoOpReranker_TopK(t *testing.T) {
	r := &NoOpReranker{}
	docs := []string{"a", "b", "c", "d"}

	results, err := r.Rerank(context.Background(), "query", docs, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// topK larger than the input returns everything.
	results, err = r.Rerank(context.Background(), "query", docs, 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestNoOpReranker_EmptyInput(t *testing.T) {
	r := &NoOpReranker{}

	results, err := r.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, r.Available(context.Background()))
}

func TestBuildRerankContext_Minimal(t *testing.T) {
	c := store.Candidate{
		ID: "auth.py::login",
		Metadata: map[string]string{
			"function":  "login",
			"file":      "auth.py",
			"signature": "def login(user: User) -> Token",
			"docstring": "Authenticate a user.",
			"class":     "AuthService",
		},
	}

	got := BuildRerankContext(c, ContextMinimal)
	assert.Equal(t, "login | auth.py", got)
}

func TestBuildRerankContext_Rich(t *testing.T) {
	c := store.Candidate{
		ID: "auth.py::login",
		Metadata: map[string]string{
			"function":  "login",
			"file":      "auth.py",
			"signature": "def login(user: User) -> Token",
			"docstring": "Authenticate a user.",
			"class":     "AuthService",
		},
	}

	got := BuildRerankContext(c, ContextRich)
	assert.Equal(t,
		"login | auth.py | def login(user: User) -> Token | Authenticate a user. | AuthService",
		got)
}

func TestBuildRerankContext_CapsDocstring(t *testing.T) {
	long := strings.Repeat("x", 300)
	c := store.Candidate{
		ID: "id",
		Metadata: map[string]string{
			"function":  "fn",
			"docstring": long,
		},
	}

	got := BuildRerankContext(c, ContextRich)
	assert.Equal(t, "fn | "+strings.Repeat("x", maxDocstringContext), got)
}

func TestBuildRerankContext_CapsDocstringOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 300)
	c := store.Candidate{
		ID: "id",
		Metadata: map[string]string{
			"function":  "fn",
			"docstring": long,
		},
	}

	got := BuildRerankContext(c, ContextRich)
	assert.Equal(t, "fn | "+strings.Repeat("é", maxDocstringContext), got)
	assert.True(t, utf8.ValidString(got))
}

func TestBuildRerankContext_SkipsMissingFields(t *testing.T) {
	c := store.Candidate{
		ID:       "pkg/mod.go::Run",
		Metadata: map[string]string{"file": "pkg/mod.go"},
	}

	assert.Equal(t, "pkg/mod.go", BuildRerankContext(c, ContextRich))
}

func TestBuildRerankContext_FallsBackToID(t *testing.T) {
	c := store.Candidate{ID: "orphan-42"}

	assert.Equal(t, "orphan-42", BuildRerankContext(c, ContextMinimal))
	assert.Equal(t, "orphan-42", BuildRerankContext(c, ContextRich))
}
