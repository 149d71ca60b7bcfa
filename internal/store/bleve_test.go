package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/codescout/codescout/internal/errors"
)

func newTestLexicalIndex(t *testing.T) *BleveLexicalIndex {
	t.Helper()
	idx, err := NewBleveLexicalIndex(LexicalConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func lexicalTestCandidates() []Candidate {
	return []Candidate{
		{ID: "auth.py::login", Text: "def login(username, password): validate the user credentials"},
		{ID: "auth.py::logout", Text: "def logout(session): invalidate the user session"},
		{ID: "math.py::multiply", Text: "def multiply(a, b): return a * b"},
	}
}

func TestBleveLexicalIndex_SearchBeforeBuild(t *testing.T) {
	idx := newTestLexicalIndex(t)

	_, err := idx.Search(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeIndexNotBuilt, cerrors.GetCode(err))
}

func TestBleveLexicalIndex_IndexAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, lexicalTestCandidates()))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	results, err := idx.Search(ctx, "user credentials", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.py::login", results[0].ID)
	assert.NotEmpty(t, results[0].MatchedTerms)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestBleveLexicalIndex_CodeAwareTokenization(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []Candidate{
		{ID: "camel", Text: "func getUserById(id string)"},
		{ID: "snake", Text: "def get_user_by_id(user_id)"},
		{ID: "other", Text: "render the dashboard template"},
	}))

	// Prose words reach the camelCase and snake_case identifiers.
	results, err := idx.Search(ctx, "user", 10)
	require.NoError(t, err)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Contains(t, ids, "camel")
	assert.Contains(t, ids, "snake")
	assert.NotContains(t, ids, "other")
}

func TestBleveLexicalIndex_TopKLimits(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, lexicalTestCandidates()))

	results, err := idx.Search(ctx, "user", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBleveLexicalIndex_NoMatches(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, lexicalTestCandidates()))

	results, err := idx.Search(ctx, "kubernetes deployment", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveLexicalIndex_Delete(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, lexicalTestCandidates()))

	require.NoError(t, idx.Delete(ctx, []string{"auth.py::login"}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	results, err := idx.Search(ctx, "credentials", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "auth.py::login", r.ID)
	}
}

func TestBleveLexicalIndex_OnDiskReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical")
	ctx := context.Background()

	idx, err := NewBleveLexicalIndex(LexicalConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, lexicalTestCandidates()))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveLexicalIndex(LexicalConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.Path())

	// A reopened non-empty index is immediately searchable.
	results, err := reopened.Search(ctx, "user credentials", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.py::login", results[0].ID)
}

func TestBleveLexicalIndex_ClosedRejectsCalls(t *testing.T) {
	idx, err := NewBleveLexicalIndex(LexicalConfig{})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close()) // idempotent

	_, err = idx.Search(context.Background(), "query", 5)
	assert.Error(t, err)
	err = idx.Index(context.Background(), lexicalTestCandidates())
	assert.Error(t, err)
}
