package retrieval

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)
	c.Set(ctx, "a", []float32{1})
	c.Set(ctx, "b", []float32{2})
	c.Set(ctx, "a", []float32{3})
	c.Set(ctx, "c", []float32{4})

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	v, ok := c.Get(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, []float32{2}, v)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCachedEmbedderHitsInnerOncePerText(t *testing.T) {
	inner := &fakeEmbedder{def: []float32{0.5, 0.5}}
	e := NewCachedEmbedder(inner, NewMemoryCache(8), "text-embedding-3-small")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vecs, err := e.Embed(context.Background(), []string{"cargo hauler"})
			assert.NoError(t, err)
			assert.Len(t, vecs, 1)
		}()
	}
	wg.Wait()
	_, err := e.Embed(context.Background(), []string{"cargo hauler", "  cargo hauler "})
	require.NoError(t, err)

	assert.LessOrEqual(t, inner.callCount(), 8)
	before := inner.callCount()
	_, err = e.Embed(context.Background(), []string{"cargo hauler"})
	require.NoError(t, err)
	assert.Equal(t, before, inner.callCount())
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	inner := &fakeEmbedder{}
	e := NewCachedEmbedder(inner, nil, "m")
	_, err := e.Embed(context.Background(), []string{"q"})
	require.Error(t, err)

	inner.def = []float32{1}
	vecs, err := e.Embed(context.Background(), []string{"q"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vecs[0])
	assert.Equal(t, 2, inner.callCount())
}
