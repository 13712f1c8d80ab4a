package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictionForCapacity(t *testing.T) {
	keys := []string{"A", "B", "C"}
	c := New[string](len(keys))

	for _, k := range keys {
		c.Put(k, k)
	}
	for _, k := range keys {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s not in cache", k)
	}

	// A is the least recently used.
	c.Put("D", "D")

	_, ok := c.Get("A")
	assert.False(t, ok, "expected A to be evicted")
	v, ok := c.Get("D")
	assert.True(t, ok)
	assert.Equal(t, "D", v)
	assert.Equal(t, 3, c.Len())
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestCacheUnbounded(t *testing.T) {
	c := New[int](0)
	for i := 0; i < 100; i++ {
		c.Put(string(rune('a'+i%26))+string(rune('A'+i/26)), i)
	}
	assert.Equal(t, 100, c.Len())
}

func TestCachePutUsesClock(t *testing.T) {
	start := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	c := NewWithClock[string](clock, 4)

	got := c.Put("X", "first")
	assert.Equal(t, start, got)

	clock.Advance(90 * time.Second)
	got = c.Put("X", "second")
	assert.Equal(t, start.Add(90*time.Second), got)

	v, ok := c.Get("X")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, c.Len())
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := New[string](4)
	c.Put("a", "1")
	c.Put("b", "2")

	assert.True(t, c.Invalidate("a"))
	assert.False(t, c.Invalidate("a"))
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)

	// Still usable after Clear.
	c.Put("c", "3")
	assert.Equal(t, 1, c.Len())
}
