package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New()
	first, err := e.Embed(context.Background(), []string{"the cat sat on the mat"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"the cat sat on the mat"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first[0], defaultDimension)
}

func TestEmbedOrderPreserving(t *testing.T) {
	e := New()
	batch, err := e.Embed(context.Background(), []string{"alpha beta", "gamma delta"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single, err := e.Embed(context.Background(), []string{"gamma delta"})
	require.NoError(t, err)
	assert.Equal(t, single[0], batch[1])
}

func TestEmbedSimilarTextScoresHigher(t *testing.T) {
	e := New()
	vecs, err := e.Embed(context.Background(), []string{
		"dragons guard the mountain treasure",
		"the dragons and their mountain treasure",
		"quarterly report on wheat futures",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestEmbedEmptyText(t *testing.T) {
	e := New()
	vecs, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
