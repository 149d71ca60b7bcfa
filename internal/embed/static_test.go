package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()

	a, err := e.Embed(context.Background(), "func handleRequest(w http.ResponseWriter)")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "func handleRequest(w http.ResponseWriter)")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_Normalized(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "database connection pool")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	auth1, err := e.Embed(ctx, "user authentication login")
	require.NoError(t, err)
	auth2, err := e.Embed(ctx, "login authentication check")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "matrix multiplication kernel")
	require.NoError(t, err)

	cos := func(a, b []float32) float64 {
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot
	}

	assert.Greater(t, cos(auth1, auth2), cos(auth1, unrelated),
		"overlapping token sets must score higher than disjoint ones")
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder()

	texts := []string{"first text", "second text", "third text"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_ClosedRejectsCalls(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
	_, err = e.EmbedBatch(context.Background(), []string{"text"})
	assert.Error(t, err)
}
