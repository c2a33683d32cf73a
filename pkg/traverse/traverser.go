package traverse

import (
	"context"
	"net/url"
	"regexp"

	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/fetch"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/queue"
	"sitemap-monitor/pkg/storage"
	"sitemap-monitor/pkg/utils"
)

// DocumentFetcher retrieves one sitemap document
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL string) (*fetch.Document, error)
}

// VisitedFactory opens a fresh visited set for a single walk
type VisitedFactory func() (storage.VisitedSet, error)

// Traverser expands a sitemap tree breadth-first into a stream of leaf page URLs.
// Sitemap documents are fetched serially, one per dequeue.
type Traverser struct {
	fetcher    DocumentFetcher
	newVisited VisitedFactory
	excludes   []*regexp.Regexp
	maxDepth   int
	memory     utils.MemoryProbe
	log        *logrus.Entry
}

// NewTraverser creates a Traverser. Exclude patterns and max depth come from cfg.
func NewTraverser(fetcher DocumentFetcher, newVisited VisitedFactory, cfg *config.AppConfig, log *logrus.Entry) (*Traverser, error) {
	excludes, err := utils.CompileRegexPatterns(cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if newVisited == nil {
		newVisited = func() (storage.VisitedSet, error) { return storage.NewMemoryVisitedSet(), nil }
	}
	return &Traverser{
		fetcher:    fetcher,
		newVisited: newVisited,
		excludes:   excludes,
		maxDepth:   cfg.MaxDepth,
		memory:     utils.CurrentHeapBytes,
		log:        log.WithField("component", "traverser"),
	}, nil
}

// SetMemoryProbe replaces the heap probe used for the max_memory cap
func (t *Traverser) SetMemoryProbe(probe utils.MemoryProbe) {
	if probe != nil {
		t.memory = probe
	}
}

// Walk starts a traversal rooted at rootURL. Nothing is fetched until the first call to Next.
// The caller must Close the stream if it stops consuming before the stream ends.
func (t *Traverser) Walk(rootURL string, limits config.Limits) (*Stream, error) {
	visited, err := t.newVisited()
	if err != nil {
		return nil, err
	}
	return &Stream{
		t:       t,
		root:    rootURL,
		limits:  limits,
		queue:   queue.NewSitemapQueue(models.SitemapRef{URL: rootURL}),
		visited: visited,
		log:     t.log.WithField("root_sitemap", rootURL),
	}, nil
}

func (t *Traverser) excluded(pageURL string) bool {
	if len(t.excludes) == 0 {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return utils.MatchAny(t.excludes, u.Path)
}
