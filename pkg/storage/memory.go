package storage

import "sync"

// MemoryVisitedSet is the default in-process VisitedSet
type MemoryVisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryVisitedSet creates an empty set
func NewMemoryVisitedSet() *MemoryVisitedSet {
	return &MemoryVisitedSet{seen: make(map[string]struct{})}
}

// MarkVisited implements VisitedSet
func (s *MemoryVisitedSet) MarkVisited(normalizedURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[normalizedURL]; ok {
		return false, nil
	}
	s.seen[normalizedURL] = struct{}{}
	return true, nil
}

// Len implements VisitedSet
func (s *MemoryVisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Close implements VisitedSet
func (s *MemoryVisitedSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
	return nil
}
