package queue

import (
	"sync"

	"sitemap-monitor/pkg/models"
)

// compactThreshold is the number of consumed slots after which the backing slice is reclaimed
const compactThreshold = 64

// SitemapQueue is a FIFO of sitemap references awaiting expansion.
// Push never deduplicates; callers check the visited set when popping.
type SitemapQueue struct {
	mu    sync.Mutex
	items []models.SitemapRef
	head  int // Index of the next item to pop
}

// NewSitemapQueue creates a queue seeded with the given references
func NewSitemapQueue(initial ...models.SitemapRef) *SitemapQueue {
	q := &SitemapQueue{}
	q.items = append(q.items, initial...)
	return q
}

// Push appends references to the back of the queue, preserving their order
func (q *SitemapQueue) Push(refs ...models.SitemapRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, refs...)
}

// Pop removes and returns the front reference. ok is false when the queue is empty.
func (q *SitemapQueue) Pop() (ref models.SitemapRef, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return models.SitemapRef{}, false
	}
	ref = q.items[q.head]
	q.items[q.head] = models.SitemapRef{} // Release strings held by the consumed slot
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= compactThreshold && q.head*2 >= len(q.items) {
		remaining := copy(q.items, q.items[q.head:])
		q.items = q.items[:remaining]
		q.head = 0
	}
	return ref, true
}

// Len returns the number of pending references
func (q *SitemapQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
