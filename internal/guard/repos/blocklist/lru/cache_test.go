package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

func blockFor(url string) domain.Decision {
	return domain.Block(domain.LayerURL, "video id: "+url, domain.Identity{VideoID: url})
}

func TestCache_GetPut(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	_, ok := c.Get("https://www.youtube.com/watch?v=a")
	assert.False(t, ok)

	want := blockFor("a")
	c.Put("https://www.youtube.com/watch?v=a", want)
	got, ok := c.Get("https://www.youtube.com/watch?v=a")
	assert.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, c.Len())

	st := c.Stats()
	assert.Equal(t, 4, st.Capacity)
	assert.Equal(t, 1, st.Size)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Put("A", blockFor("A"))
	c.Put("B", blockFor("B"))
	_, _ = c.Get("A")
	c.Put("C", blockFor("C"))

	_, okA := c.Get("A")
	_, okB := c.Get("B")
	_, okC := c.Get("C")
	assert.True(t, okA)
	assert.False(t, okB, "B was least recently used")
	assert.True(t, okC)
	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestCache_PurgeCountsEvictions(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	c.Put("A", domain.Allow())
	c.Put("B", domain.Allow())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.EqualValues(t, 2, c.Stats().Evictions)
}

func TestCache_Disabled(t *testing.T) {
	for _, size := range []int{0, -1} {
		c, err := New(size)
		require.NoError(t, err)
		c.Put("A", blockFor("A"))
		_, ok := c.Get("A")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
		c.Purge()
		assert.Equal(t, 0, c.Stats().Capacity)
	}
}

func BenchmarkCache_Hit(b *testing.B) {
	c, err := New(1024)
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	key := "https://www.youtube.com/watch?v=abc"
	c.Put(key, blockFor("abc"))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get(key); !ok {
			b.Fatalf("unexpected miss for %q", key)
		}
	}
}
