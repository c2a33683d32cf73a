package sitemap

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/check"
	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/fetch"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/parse"
	"sitemap-monitor/pkg/stats"
	"sitemap-monitor/pkg/storage"
	"sitemap-monitor/pkg/traverse"
	"sitemap-monitor/pkg/utils"
)

// Processor runs the full pipeline for one sitemap tree per call: traverse, check in
// chunks, aggregate. Concurrent calls with different limits do not share state beyond
// the HTTP clients and the max_requests semaphore.
type Processor struct {
	cfg       *config.AppConfig
	traverser *traverse.Traverser
	checker   *check.Checker
	memory    utils.MemoryProbe
	log       *logrus.Entry
}

// NewProcessor wires the fetcher, traverser and checker from a validated config
func NewProcessor(cfg *config.AppConfig, log *logrus.Entry) (*Processor, error) {
	procLog := log.WithField("component", "sitemap_processor")

	fetchLog := log.WithField("component", "fetcher")
	fetcher := fetch.NewFetcher(fetch.NewClient(cfg.HTTPClientSettings, fetchLog), cfg, fetchLog)

	newVisited := func() (storage.VisitedSet, error) {
		return storage.OpenVisitedSet(cfg, log.WithField("component", "visited_set"))
	}
	traverser, err := traverse.NewTraverser(fetcher, newVisited, cfg, log)
	if err != nil {
		return nil, err
	}

	return newProcessor(cfg, traverser, check.NewChecker(cfg, log), procLog), nil
}

func newProcessor(cfg *config.AppConfig, traverser *traverse.Traverser, checker *check.Checker, log *logrus.Entry) *Processor {
	return &Processor{
		cfg:       cfg,
		traverser: traverser,
		checker:   checker,
		memory:    utils.CurrentHeapBytes,
		log:       log,
	}
}

// SetMemoryProbe replaces the heap probe used for max_memory checks during traversal
// and between chunks
func (p *Processor) SetMemoryProbe(probe utils.MemoryProbe) {
	if probe == nil {
		return
	}
	p.memory = probe
	p.traverser.SetMemoryProbe(probe)
}

// ProcessSitemap discovers every page reachable from sitemapURL and checks its status.
// Zero-valued fields in limits fall back to the configured defaults. Reaching max_urls or
// max_memory yields a partial Report, not an error. Failures other than an invalid URL
// are returned as a PipelineError naming sitemapURL.
func (p *Processor) ProcessSitemap(ctx context.Context, sitemapURL string, limits config.Limits) (report *models.Report, err error) {
	sitemapURL = strings.TrimSpace(sitemapURL)
	if !parse.IsValidURL(sitemapURL) {
		return nil, utils.NewError(utils.KindInvalidURL, sitemapURL,
			utils.WrapErrorf(utils.ErrParsing, "URL must have a scheme and host"))
	}

	limits = limits.WithDefaults(p.cfg.Limits)
	runLog := p.log.WithFields(logrus.Fields{
		"sitemap_url": sitemapURL,
		"max_urls":    limits.MaxURLs,
		"chunk_size":  limits.ChunkSize,
		"workers":     limits.Workers,
	})

	defer func() {
		if r := recover(); r != nil {
			runLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC Recovered in sitemap processing")
			report = nil
			err = utils.NewError(utils.KindPipeline, sitemapURL, fmt.Errorf("panic: %v", r))
		}
	}()

	runLog.Info("Processing sitemap tree")
	start := time.Now()

	stream, err := p.traverser.Walk(sitemapURL, limits)
	if err != nil {
		return nil, utils.NewError(utils.KindPipeline, sitemapURL, err)
	}
	defer stream.Close()

	results, err := p.checkStream(ctx, sitemapURL, stream, limits, runLog)
	if err != nil {
		return nil, utils.NewError(utils.KindPipeline, sitemapURL, err)
	}

	elapsed := time.Since(start)
	report = &models.Report{
		SitemapURL:     sitemapURL,
		ProcessingTime: math.Round(elapsed.Seconds()*100) / 100,
		TotalURLs:      len(results),
		Stats:          stats.Calculate(results),
		Results:        results,
	}

	walkStats := stream.Stats()
	mem := utils.ReadMemoryUsage()
	runLog.WithFields(logrus.Fields{
		"total_urls":       report.TotalURLs,
		"sitemaps_fetched": walkStats.SitemapsFetched,
		"sitemaps_failed":  walkStats.SitemapsFailed,
		"heap":             mem.HeapAllocHuman(),
	}).Infof("Sitemap processed in %.2fs", report.ProcessingTime)
	return report, nil
}

// checkStream consumes the stream in chunks of limits.ChunkSize, checking each chunk
// before pulling the next one
func (p *Processor) checkStream(ctx context.Context, sitemapURL string, stream *traverse.Stream, limits config.Limits, runLog *logrus.Entry) ([]models.CheckResult, error) {
	results := make([]models.CheckResult, 0)
	chunk := make([]models.PageURL, 0, limits.ChunkSize)
	chunkNum := 0

	for {
		page, ok := stream.Next(ctx)
		if ok {
			chunk = append(chunk, page)
		}

		if len(chunk) > 0 && (len(chunk) >= limits.ChunkSize || !ok) {
			chunkNum++
			runLog.WithField("chunk", chunkNum).Debugf("Checking %d URLs", len(chunk))
			results = append(results, p.checker.CheckBatch(ctx, chunk, limits.Workers)...)
			chunk = chunk[:0]

			if ok && p.memoryExceeded(limits) {
				capErr := utils.NewError(utils.KindResourceCap, sitemapURL, fmt.Errorf("%w: after chunk %d", utils.ErrMaxMemoryReached, chunkNum))
				runLog.WithField("error_type", utils.CategorizeError(capErr)).Warnf("Stopping early with partial results: %v", capErr)
				return results, nil
			}
		}

		if !ok {
			break
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}
	if capErr := stream.CapReached(); capErr != nil {
		runLog.WithField("error_type", utils.CategorizeError(capErr)).Warnf("Results truncated: %v", capErr)
	}
	return results, nil
}

func (p *Processor) memoryExceeded(limits config.Limits) bool {
	maxMem := limits.MaxMemoryBytes()
	return maxMem > 0 && p.memory() >= maxMem
}
