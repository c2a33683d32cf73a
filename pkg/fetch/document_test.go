package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/utils"
)

const urlsetBody = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
</urlset>`

func TestFetchDocument_XML(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Write([]byte(urlsetBody))
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(testClient(), testConfig(0), testLogger())
	doc, err := fetcher.FetchDocument(context.Background(), server.URL+"/sitemap.xml")

	require.NoError(t, err)
	assert.Equal(t, config.DefaultUserAgent, gotUA)
	assert.Equal(t, server.URL+"/sitemap.xml", doc.URL)
	assert.Equal(t, "application/xml; charset=utf-8", doc.ContentType)
	assert.Equal(t, urlsetBody, string(doc.Body))
	assert.False(t, doc.Compressed)
}

func TestFetchDocument_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(urlsetBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(testClient(), testConfig(0), testLogger())
	doc, err := fetcher.FetchDocument(context.Background(), server.URL+"/sitemap.xml.gz")

	require.NoError(t, err)
	assert.True(t, doc.Compressed)
	assert.Equal(t, "application/xml", doc.ContentType)
	assert.Equal(t, urlsetBody, string(doc.Body))
}

func TestFetchDocument_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(0)
	cfg.MaxDocumentBytes = 1024
	fetcher := NewFetcher(testClient(), cfg, testLogger())

	_, err := fetcher.FetchDocument(context.Background(), server.URL+"/big.xml")

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFetch)
	assert.ErrorIs(t, err, utils.ErrDocumentTooLarge)
}

func TestFetchDocument_HTTPError(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	_, err := fetcher.FetchDocument(context.Background(), server.URL+"/missing.xml")

	require.Error(t, err)
	assert.Equal(t, utils.KindFetch, utils.KindOf(err))
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
	assert.Contains(t, err.Error(), server.URL+"/missing.xml")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchDocument_InvalidURL(t *testing.T) {
	fetcher := NewFetcher(testClient(), testConfig(0), testLogger())
	_, err := fetcher.FetchDocument(context.Background(), "http://[::1")

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestProbeClient_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	var cfg config.AppConfig
	_, err := cfg.Validate()
	require.NoError(t, err)

	probe := NewProbeClient(cfg.HTTPClientSettings, testLogger())
	resp, err := probe.Head(server.URL + "/old")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/new", resp.Header.Get("Location"))

	follow := NewClient(cfg.HTTPClientSettings, testLogger())
	resp, err = follow.Get(server.URL + "/old")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, server.URL+"/new", resp.Request.URL.String())
}
