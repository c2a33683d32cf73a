package fetch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/utils"
)

// gzipMagic is the two-byte header of every gzip stream
var gzipMagic = []byte{0x1f, 0x8b}

// Document is a fetched sitemap body together with the metadata the parser needs
type Document struct {
	URL         string // URL as requested, used as the base for relative links
	FinalURL    string // URL after redirects
	ContentType string
	Body        []byte
	Compressed  bool // Body was gzip-encoded on the wire and has been inflated
}

// FetchDocument GETs a sitemap document with the configured user agent and per-call timeout.
// Failures are returned as a FetchError carrying the URL.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	docLog := f.log.WithField("sitemap_url", rawURL)

	if f.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.NewError(utils.KindFetch, rawURL, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,text/html;q=0.8,*/*;q=0.5")

	resp, err := f.FetchWithRetry(ctx, req)
	if err != nil {
		drainAndClose(resp)
		return nil, utils.NewError(utils.KindFetch, rawURL, err)
	}
	defer resp.Body.Close()

	doc := &Document{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if doc.FinalURL != rawURL {
		docLog.WithField("final_url", doc.FinalURL).Debug("Sitemap fetch was redirected")
	}

	body, compressed, err := readBody(resp.Body, f.cfg.MaxDocumentBytes)
	if err != nil {
		return nil, utils.NewError(utils.KindFetch, rawURL, err)
	}
	doc.Body = body
	doc.Compressed = compressed
	if compressed && !strings.Contains(strings.ToLower(doc.ContentType), "xml") {
		// A gzip payload at a sitemap location is an XML sitemap
		doc.ContentType = "application/xml"
	}

	docLog.WithFields(logrus.Fields{
		"content_type": doc.ContentType,
		"bytes":        len(doc.Body),
		"compressed":   compressed,
	}).Debug("Fetched sitemap document")
	return doc, nil
}

// readBody reads at most maxBytes from r, inflating gzip streams detected by their magic header.
// The cap applies to the inflated size.
func readBody(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	br := bufio.NewReader(r)
	compressed := false
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		compressed = true
	}

	var src io.Reader = br
	if compressed {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, true, fmt.Errorf("%w: gzip header: %w", utils.ErrResponseBodyRead, err)
		}
		defer zr.Close()
		src = zr
	}

	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, compressed, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, compressed, fmt.Errorf("%w: more than %d bytes", utils.ErrDocumentTooLarge, maxBytes)
	}
	return body, compressed, nil
}
