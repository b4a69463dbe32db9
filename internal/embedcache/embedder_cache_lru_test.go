package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls   int
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.batches = append(c.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int    { return 2 }
func (c *countingEmbedder) ModelName() string { return "test-embed" }

func TestLruEmbedderCachesRepeats(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, inner.calls)

	second, err := e.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruEmbedderOnlyMissesGoDownstream(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"aa"})
	require.NoError(t, err)

	out, err := e.EmbedBatch(ctx, []string{"cccc", "aa", "bbb"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, []float32{4, 1}, out[0])
	require.Equal(t, []float32{2, 1}, out[1])
	require.Equal(t, []float32{3, 1}, out[2])
	require.Equal(t, 2, inner.calls)
	require.Equal(t, []string{"cccc", "bbb"}, inner.batches[1])
}

func TestLruEmbedderDisabledPassThrough(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 0, time.Minute)
	require.Equal(t, inner, e)
}
