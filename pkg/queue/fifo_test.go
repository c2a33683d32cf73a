package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-monitor/pkg/models"
)

func ref(i int) models.SitemapRef {
	return models.SitemapRef{URL: fmt.Sprintf("https://example.com/sitemap-%d.xml", i), Depth: i % 3}
}

func TestSitemapQueue_EmptyPop(t *testing.T) {
	q := NewSitemapQueue()
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestSitemapQueue_FIFOOrder(t *testing.T) {
	q := NewSitemapQueue(ref(0))
	q.Push(ref(1), ref(2))
	q.Push(ref(3))

	for i := 0; i < 4; i++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, ref(i), got)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestSitemapQueue_NoDeduplication(t *testing.T) {
	q := NewSitemapQueue()
	q.Push(ref(7), ref(7))
	assert.Equal(t, 2, q.Len())
}

func TestSitemapQueue_InterleavedPushPopAcrossCompaction(t *testing.T) {
	q := NewSitemapQueue()
	next := 0
	expected := 0

	// Keep a small backlog while cycling far past the compaction threshold
	for round := 0; round < 500; round++ {
		q.Push(ref(next), ref(next+1))
		next += 2
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, ref(expected), got)
		expected++
	}
	assert.Equal(t, next-expected, q.Len())

	for q.Len() > 0 {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, ref(expected), got)
		expected++
	}
	assert.Equal(t, next, expected)
}

func TestSitemapQueue_ConcurrentPush(t *testing.T) {
	q := NewSitemapQueue()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(ref(g*100 + i))
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}
