package storage

// VisitedSet records which sitemap documents a single run has already expanded.
// Keys are normalized sitemap URLs. A set lives for one run and is closed at its end.
type VisitedSet interface {
	// MarkVisited records normalizedURL and reports whether it was newly added.
	// false means the sitemap was already expanded and must be skipped.
	MarkVisited(normalizedURL string) (added bool, err error)

	// Len returns the number of distinct sitemaps recorded
	Len() int

	// Close releases the set's resources
	Close() error
}
