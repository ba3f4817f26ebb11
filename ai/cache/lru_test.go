package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_SetGet(t *testing.T) {
	c := New[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	// "b" is now least recently used.
	c.Set("c", "3")
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Set("a", "updated")
	v, _ = c.Get("a")
	assert.Equal(t, "updated", v)
}

func TestLRU_Expiry(t *testing.T) {
	c := New[int](0, time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(500 * time.Millisecond)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRU_RemovePrefix(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("project:p1", 1)
	c.Set("project:p1:tab", 2)
	c.Set("project:p2", 3)

	assert.Equal(t, 2, c.RemovePrefix("project:p1"))
	assert.True(t, c.Remove("project:p2"))
	assert.False(t, c.Remove("project:p2"))
}

func TestLRU_GetOrLoad(t *testing.T) {
	c := New[string](10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "loaded", r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(5))

	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		t.Fatal("cached value should be used")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
}

func TestLRU_GetOrLoadError(t *testing.T) {
	c := New[string](10, time.Minute)
	_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	assert.Error(t, err)
	assert.Zero(t, c.Len())
}
