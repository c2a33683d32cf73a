package traverse

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/parse"
	"sitemap-monitor/pkg/queue"
	"sitemap-monitor/pkg/storage"
	"sitemap-monitor/pkg/utils"
)

// Stats counts what a walk did with the sitemap documents it dequeued
type Stats struct {
	SitemapsFetched int // Fetched and parsed
	SitemapsFailed  int // Fetch or parse failed; contributed zero URLs
	SkippedVisited  int // Dequeued again after already being expanded
	SkippedDepth    int // Deeper than max_depth
	Excluded        int // Leaf URLs dropped by exclude_patterns
	Emitted         int // Leaf URLs handed to the consumer
}

// Stream is a pull-based, finite, non-restartable sequence of leaf page URLs.
// It is not safe for concurrent use.
type Stream struct {
	t       *Traverser
	root    string
	limits  config.Limits
	queue   *queue.SitemapQueue
	visited storage.VisitedSet
	buffer  []models.PageURL
	stats   Stats
	done    bool
	err     error
	capErr  error
	log     *logrus.Entry
}

// Next returns the next leaf URL. ok is false once the stream has ended, after which
// Err and CapReached explain why.
func (s *Stream) Next(ctx context.Context) (page models.PageURL, ok bool) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			break
		}

		if s.limits.MaxURLs > 0 && s.stats.Emitted >= s.limits.MaxURLs {
			if len(s.buffer) > 0 || s.queue.Len() > 0 {
				s.reachCap(fmt.Errorf("%w: %d URLs emitted", utils.ErrMaxURLsReached, s.stats.Emitted))
			} else {
				s.finish(nil)
			}
			break
		}

		if len(s.buffer) > 0 {
			page = s.buffer[0]
			s.buffer = s.buffer[1:]
			s.stats.Emitted++
			return page, true
		}

		if maxMem := s.limits.MaxMemoryBytes(); maxMem > 0 {
			if heap := s.t.memory(); heap >= maxMem {
				s.reachCap(fmt.Errorf("%w: heap %d bytes >= limit %d bytes", utils.ErrMaxMemoryReached, heap, maxMem))
				break
			}
		}

		ref, more := s.queue.Pop()
		if !more {
			s.finish(nil)
			break
		}
		if err := s.expand(ctx, ref); err != nil {
			s.finish(err)
		}
	}
	return models.PageURL{}, false
}

// expand fetches and parses one sitemap. Fetch and parse failures are absorbed; only
// errors that make the walk itself unsound are returned.
func (s *Stream) expand(ctx context.Context, ref models.SitemapRef) error {
	refLog := s.log.WithFields(logrus.Fields{"sitemap_url": ref.URL, "depth": ref.Depth})

	if s.t.maxDepth > 0 && ref.Depth > s.t.maxDepth {
		s.stats.SkippedDepth++
		refLog.Debugf("Skipping sitemap beyond max_depth %d", s.t.maxDepth)
		return nil
	}

	normalized, _, err := parse.ParseAndNormalize(ref.URL)
	if err != nil {
		s.stats.SitemapsFailed++
		refLog.WithField("error_type", "Content_ParsingURL").Warnf("Skipping unparsable sitemap reference: %v", err)
		return nil
	}

	added, err := s.visited.MarkVisited(normalized)
	if err != nil {
		return fmt.Errorf("visited set: %w", err)
	}
	if !added {
		s.stats.SkippedVisited++
		refLog.Debug("Sitemap already expanded, skipping")
		return nil
	}

	refLog.Info("Processing sitemap")
	doc, err := s.t.fetcher.FetchDocument(ctx, ref.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.stats.SitemapsFailed++
		refLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Sitemap contributes no URLs: %v", err)
		return nil
	}

	res, err := parse.ParseDocument(doc.Body, doc.ContentType, doc.URL)
	if err != nil {
		s.stats.SitemapsFailed++
		refLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Sitemap contributes no URLs: %v", err)
		return nil
	}
	s.stats.SitemapsFetched++
	if res.Lenient {
		refLog.Warnf("Malformed sitemap, recovered %d sitemaps and %d URLs by lenient extraction", len(res.Sitemaps), len(res.Pages))
	}

	for _, child := range res.Sitemaps {
		s.queue.Push(models.SitemapRef{URL: child, Depth: ref.Depth + 1, Parent: ref.URL})
	}

	kept := 0
	for _, pageURL := range res.Pages {
		if s.t.excluded(pageURL) {
			s.stats.Excluded++
			continue
		}
		s.buffer = append(s.buffer, models.PageURL{URL: pageURL, Sitemap: ref.URL, Lenient: res.Lenient})
		kept++
	}

	refLog.Infof("Parsed as %s: %d child sitemaps, %d URLs", res.Kind, len(res.Sitemaps), kept)
	return nil
}

func (s *Stream) reachCap(err error) {
	s.capErr = utils.NewError(utils.KindResourceCap, s.root, err)
	s.log.WithField("error_type", utils.CategorizeError(err)).Warnf("Stopping traversal early: %v", err)
	s.finish(nil)
}

func (s *Stream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.buffer = nil
	if closeErr := s.visited.Close(); closeErr != nil {
		s.log.Warnf("Failed to close visited set: %v", closeErr)
	}
	s.log.WithFields(logrus.Fields{
		"fetched":         s.stats.SitemapsFetched,
		"failed":          s.stats.SitemapsFailed,
		"skipped_visited": s.stats.SkippedVisited,
		"emitted":         s.stats.Emitted,
	}).Debug("Traversal finished")
}

// Err returns the error that ended the stream early, or nil. Reaching a cap is not an error.
func (s *Stream) Err() error { return s.err }

// CapReached returns a ResourceCapReached error if the stream stopped at max_urls or
// max_memory, for logging. It is nil for exhaustive or failed walks.
func (s *Stream) CapReached() error { return s.capErr }

// Stats returns the walk's counters so far
func (s *Stream) Stats() Stats { return s.stats }

// Close ends the stream and releases its visited set. Safe to call more than once.
func (s *Stream) Close() { s.finish(nil) }
