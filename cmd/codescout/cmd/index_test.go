package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout/codescout/internal/embed"
	"github.com/codescout/codescout/internal/search"
	"github.com/codescout/codescout/internal/store"
)

// newMemoryApp wires a fully in-memory stack for tests.
func newMemoryApp(t *testing.T) *app {
	t.Helper()

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 100)
	lexical, err := store.NewBleveLexicalIndex(store.LexicalConfig{})
	require.NoError(t, err)
	dense, err := store.NewHNSWDenseIndex(store.DefaultDenseConfig(embedder.Dimensions()), embedder)
	require.NoError(t, err)
	candidates, err := store.NewSQLiteCandidateStore("")
	require.NoError(t, err)

	engine, err := search.NewEngine(lexical, dense, search.DefaultEngineConfig(),
		search.WithClassifier(search.NewClassifier()),
		search.WithCandidateStore(candidates))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return &app{engine: engine, dense: dense}
}

const testCorpus = `{"id": "auth.py::login", "text": "def login(username, password): validate user credentials", "metadata": {"file": "auth.py", "function": "login", "language": "python"}}
{"id": "auth.py::logout", "text": "def logout(session): invalidate the user session", "metadata": {"file": "auth.py", "function": "logout", "language": "python"}}
{"id": "math.py::multiply", "text": "def multiply(a, b): return a * b", "metadata": {"file": "math.py", "function": "multiply", "language": "python"}}
`

func TestIndexStream(t *testing.T) {
	a := newMemoryApp(t)

	total, err := indexStream(context.Background(), a, strings.NewReader(testCorpus))
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	stats := a.engine.Stats(context.Background())
	assert.Equal(t, uint64(3), stats.LexicalCount)
	assert.Equal(t, 3, stats.DenseCount)
	assert.Equal(t, 3, stats.CandidateCount)
}

func TestIndexStream_ThenSearch(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	_, err := indexStream(ctx, a, strings.NewReader(testCorpus))
	require.NoError(t, err)

	results, err := a.engine.Search(ctx, "user credentials", search.SearchOptions{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Hits come back enriched from the candidate store.
	assert.Equal(t, "auth.py::login", results[0].Candidate.ID)
	assert.Contains(t, results[0].Candidate.Text, "validate user credentials")
	assert.Equal(t, "login", results[0].Candidate.Metadata["function"])
	assert.Greater(t, results[0].FusionScore, 0.0)
}

func TestIndexStream_ClassifiedSearchPicksTheRightSource(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	corpus := `{"id": "routes.py::APIRouter", "text": "class APIRouter: def include_router(self, router): pass", "metadata": {"file": "routes.py", "function": "APIRouter"}}
{"id": "auth.py::check_login", "text": "def check_login(session): verify user login credentials for the session", "metadata": {"file": "auth.py", "function": "check_login"}}
{"id": "math.py::multiply", "text": "def multiply(a, b): return a * b", "metadata": {"file": "math.py", "function": "multiply"}}
`
	_, err := indexStream(ctx, a, strings.NewReader(corpus))
	require.NoError(t, err)

	// An identifier query goes lexical-only and hits the exact token.
	results, err := a.engine.Search(ctx, "APIRouter",
		search.SearchOptions{Limit: 3, UseClassifier: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "routes.py::APIRouter", results[0].Candidate.ID)

	// A conversational query leans on dense retrieval: the credential
	// checker outranks the irrelevant math helper.
	results, err = a.engine.Search(ctx, "how to verify user login",
		search.SearchOptions{Limit: 3, UseClassifier: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.py::check_login", results[0].Candidate.ID)

	rank := func(id string) int {
		for i, r := range results {
			if r.Candidate.ID == id {
				return i
			}
		}
		return len(results)
	}
	assert.Less(t, rank("auth.py::check_login"), rank("math.py::multiply"))
}

func TestIndexStream_MalformedLine(t *testing.T) {
	a := newMemoryApp(t)

	corpus := `{"id": "ok", "text": "fine"}
{not json at all`
	_, err := indexStream(context.Background(), a, strings.NewReader(corpus))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse candidate")
}

func TestIndexStream_MissingID(t *testing.T) {
	a := newMemoryApp(t)

	corpus := `{"text": "no id on this one"}`
	_, err := indexStream(context.Background(), a, strings.NewReader(corpus))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")
}

func TestIndexStream_Empty(t *testing.T) {
	a := newMemoryApp(t)

	total, err := indexStream(context.Background(), a, strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, total)
}
