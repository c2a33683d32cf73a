package check

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/fetch"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/utils"
)

// getProbeBodyBytes is how much of a GET fallback body is read to confirm the response landed
const getProbeBodyBytes = 1024

// Checker probes page URLs for their HTTP status
type Checker struct {
	probe     *http.Client // HEAD, redirects not followed
	follow    *http.Client // GET fallback, redirects followed
	userAgent string
	timeout   time.Duration
	global    *semaphore.Weighted // Process-wide in-flight cap; nil when max_requests is 0
	log       *logrus.Entry
}

// NewChecker builds a Checker from the application config.
// The max_requests semaphore is shared by every batch this Checker runs.
func NewChecker(cfg *config.AppConfig, log *logrus.Entry) *Checker {
	checkLog := log.WithField("component", "status_checker")
	c := &Checker{
		probe:     fetch.NewProbeClient(cfg.HTTPClientSettings, checkLog),
		follow:    fetch.NewClient(cfg.HTTPClientSettings, checkLog),
		userAgent: cfg.UserAgent,
		timeout:   cfg.ProbeTimeout,
		log:       checkLog,
	}
	if cfg.MaxRequests > 0 {
		c.global = semaphore.NewWeighted(int64(cfg.MaxRequests))
	}
	return c
}

// CheckBatch probes every page with at most workers probes in flight.
// The result slice has exactly one entry per input, at the input's index; a probe that
// fails yields a status 0 result instead of aborting the batch.
func (c *Checker) CheckBatch(ctx context.Context, pages []models.PageURL, workers int) []models.CheckResult {
	results := make([]models.CheckResult, len(pages))
	if len(pages) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, page := range pages {
		g.Go(func() error {
			result := c.checkWithSlot(ctx, page.URL)
			result.Lenient = page.Lenient
			results[i] = result
			return nil
		})
	}
	g.Wait() // Workers never return errors

	c.log.WithFields(logrus.Fields{"urls": len(pages), "workers": workers}).Debug("Batch checked")
	return results
}

// CheckURLs is CheckBatch for plain URL strings
func (c *Checker) CheckURLs(ctx context.Context, urls []string, workers int) []models.CheckResult {
	pages := make([]models.PageURL, len(urls))
	for i, u := range urls {
		pages[i] = models.PageURL{URL: u}
	}
	return c.CheckBatch(ctx, pages, workers)
}

func (c *Checker) checkWithSlot(ctx context.Context, pageURL string) models.CheckResult {
	if c.global != nil {
		if err := c.global.Acquire(ctx, 1); err != nil {
			return c.failure(pageURL, err)
		}
		defer c.global.Release(1)
	}
	return c.CheckURL(ctx, pageURL)
}

// CheckURL probes a single URL: HEAD without following redirects, falling back to a GET
// that follows redirects when the server answers 405. Only the GET path can report a
// redirect, with RedirectURL set to the final URL of the chain.
func (c *Checker) CheckURL(ctx context.Context, pageURL string) models.CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, c.probe, http.MethodHead, pageURL)
	if err != nil {
		return c.failure(pageURL, err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		c.log.WithField("url", pageURL).Debug("HEAD not allowed, retrying with GET")
		return c.checkWithGet(ctx, pageURL)
	}

	// The probe client does not follow redirects, so the effective URL is the requested one
	return newResult(pageURL, resp)
}

func (c *Checker) checkWithGet(ctx context.Context, pageURL string) models.CheckResult {
	resp, err := c.do(ctx, c.follow, http.MethodGet, pageURL)
	if err != nil {
		return c.failure(pageURL, err)
	}
	defer resp.Body.Close()

	if _, err := io.CopyN(io.Discard, resp.Body, getProbeBodyBytes); err != nil && err != io.EOF {
		c.log.WithField("url", pageURL).Debugf("Partial body read failed: %v", err)
	}

	result := newResult(pageURL, resp)
	if final := resp.Request.URL.String(); final != pageURL {
		result.IsRedirect = true
		result.RedirectURL = &final
	}
	return result
}

func (c *Checker) do(ctx context.Context, client *http.Client, method, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, pageURL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "%v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return client.Do(req)
}

// failure converts a transport error into a status 0 result
func (c *Checker) failure(pageURL string, err error) models.CheckResult {
	probeErr := utils.NewError(utils.KindProbe, pageURL, err)
	category := utils.CategorizeError(probeErr)
	c.log.WithFields(logrus.Fields{"url": pageURL, "error_type": category}).Debugf("Probe failed: %v", err)

	return models.CheckResult{
		URL:           pageURL,
		StatusCode:    0,
		StatusMessage: failureMessage(category, err),
	}
}

func failureMessage(category string, err error) string {
	switch {
	case strings.HasPrefix(category, "Network_Timeout"):
		return "Timeout"
	case strings.HasPrefix(category, "Network_Connection"), category == "Network_DNSLookup":
		return "Connection Error"
	default:
		return "Error: " + err.Error()
	}
}

// newResult fills the status fields from resp. The message is the server's reason phrase
// when it sent one, else Go's canonical text.
func newResult(pageURL string, resp *http.Response) models.CheckResult {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return models.CheckResult{
		URL:           pageURL,
		StatusCode:    resp.StatusCode,
		StatusMessage: msg,
	}
}
