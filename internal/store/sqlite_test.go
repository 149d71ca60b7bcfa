package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/codescout/codescout/internal/errors"
)

func newTestCandidateStore(t *testing.T) *SQLiteCandidateStore {
	t.Helper()
	s, err := NewSQLiteCandidateStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteCandidateStore_SaveAndGet(t *testing.T) {
	s := newTestCandidateStore(t)
	ctx := context.Background()

	candidates := []Candidate{
		{
			ID:       "auth.py::login",
			Text:     "def login(): pass",
			Metadata: map[string]string{"file": "auth.py", "function": "login"},
		},
		{ID: "plain", Text: "no metadata here"},
	}
	require.NoError(t, s.SaveCandidates(ctx, candidates))

	got, err := s.GetCandidate(ctx, "auth.py::login")
	require.NoError(t, err)
	assert.Equal(t, "def login(): pass", got.Text)
	assert.Equal(t, "auth.py", got.Metadata["file"])

	got, err = s.GetCandidate(ctx, "plain")
	require.NoError(t, err)
	assert.Empty(t, got.Metadata)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteCandidateStore_GetUnknown(t *testing.T) {
	s := newTestCandidateStore(t)

	_, err := s.GetCandidate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeCandidateNotFound, cerrors.GetCode(err))
}

func TestSQLiteCandidateStore_UpsertReplaces(t *testing.T) {
	s := newTestCandidateStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCandidates(ctx, []Candidate{{ID: "a", Text: "v1"}}))
	require.NoError(t, s.SaveCandidates(ctx, []Candidate{
		{ID: "a", Text: "v2", Metadata: map[string]string{"rev": "2"}},
	}))

	got, err := s.GetCandidate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, "2", got.Metadata["rev"])

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteCandidateStore_GetCandidatesOrder(t *testing.T) {
	s := newTestCandidateStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCandidates(ctx, []Candidate{
		{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"},
	}))

	// Caller order is preserved and unknown ids are skipped.
	got, err := s.GetCandidates(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestSQLiteCandidateStore_GetCandidatesEmpty(t *testing.T) {
	s := newTestCandidateStore(t)

	got, err := s.GetCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteCandidateStore_SaveEmptyBatch(t *testing.T) {
	s := newTestCandidateStore(t)
	require.NoError(t, s.SaveCandidates(context.Background(), nil))
}

func TestSQLiteCandidateStore_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.db")
	ctx := context.Background()

	s, err := NewSQLiteCandidateStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveCandidates(ctx, []Candidate{
		{ID: "persisted", Text: "survives reopen", Metadata: map[string]string{"k": "v"}},
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteCandidateStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetCandidate(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "survives reopen", got.Text)
	assert.Equal(t, "v", got.Metadata["k"])
}
