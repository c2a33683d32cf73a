package check

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testChecker(t *testing.T, mutate func(*config.AppConfig)) *Checker {
	t.Helper()
	cfg := &config.AppConfig{ProbeTimeout: 2 * time.Second}
	if mutate != nil {
		mutate(cfg)
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return NewChecker(cfg, testLogger())
}

func TestCheckURL_OK(t *testing.T) {
	var method, ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/page")

	assert.Equal(t, http.MethodHead, method)
	assert.Equal(t, config.DefaultUserAgent, ua)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "OK", res.StatusMessage)
	assert.False(t, res.IsRedirect)
	assert.Nil(t, res.RedirectURL)
}

func TestCheckURL_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/gone")

	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "Not Found", res.StatusMessage)
}

func TestCheckURL_HeadRedirectNotFollowed(t *testing.T) {
	var hops atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			http.Redirect(w, r, "/b", http.StatusMovedPermanently)
		case "/b":
			hops.Add(1)
			http.Redirect(w, r, "/c", http.StatusMovedPermanently)
		default:
			hops.Add(1)
		}
	}))
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/a")

	assert.Equal(t, 301, res.StatusCode)
	assert.Equal(t, "Moved Permanently", res.StatusMessage)
	assert.False(t, res.IsRedirect)
	assert.Nil(t, res.RedirectURL)
	assert.Equal(t, int32(0), hops.Load())
}

func TestCheckURL_MethodNotAllowedFallsBackToGet(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("hello"))
	}))
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/page")

	assert.Equal(t, []string{"HEAD /page", "GET /page"}, methods)
	assert.Equal(t, 200, res.StatusCode)
	assert.False(t, res.IsRedirect)
	assert.Nil(t, res.RedirectURL)
}

func TestCheckURL_GetFallbackRecordsFinalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/middle", http.StatusMovedPermanently)
		case "/middle":
			http.Redirect(w, r, "/final", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/start")

	assert.Equal(t, 200, res.StatusCode)
	assert.True(t, res.IsRedirect)
	require.NotNil(t, res.RedirectURL)
	assert.Equal(t, server.URL+"/final", *res.RedirectURL)
}

func TestCheckURL_GetFallbackReadsOnlyPrefix(t *testing.T) {
	var written atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		chunk := make([]byte, 32*1024)
		for range 64 {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	res := testChecker(t, nil).CheckURL(context.Background(), server.URL+"/large")

	assert.Equal(t, 200, res.StatusCode)
}

func TestCheckURL_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	checker := testChecker(t, func(cfg *config.AppConfig) { cfg.ProbeTimeout = 100 * time.Millisecond })
	res := checker.CheckURL(context.Background(), server.URL+"/slow")

	assert.Equal(t, 0, res.StatusCode)
	assert.Equal(t, "Timeout", res.StatusMessage)
}

func TestCheckURL_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	res := testChecker(t, nil).CheckURL(context.Background(), "http://"+addr+"/nothing")

	assert.Equal(t, 0, res.StatusCode)
	assert.Equal(t, "Connection Error", res.StatusMessage)
}

func TestCheckURL_InvalidURL(t *testing.T) {
	res := testChecker(t, nil).CheckURL(context.Background(), "http://[::1")

	assert.Equal(t, 0, res.StatusCode)
	assert.Contains(t, res.StatusMessage, "Error: ")
}

// Results are matched by URL, never by completion order.
func TestCheckBatch_OneResultPerInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/hang":
			time.Sleep(500 * time.Millisecond)
		}
	}))
	t.Cleanup(server.Close)

	var pages []models.PageURL
	for i := range 20 {
		pages = append(pages, models.PageURL{URL: fmt.Sprintf("%s/ok-%d", server.URL, i)})
	}
	pages = append(pages,
		models.PageURL{URL: server.URL + "/missing"},
		models.PageURL{URL: server.URL + "/broken", Lenient: true},
		models.PageURL{URL: server.URL + "/hang"},
		models.PageURL{URL: "http://[::1"},
	)

	checker := testChecker(t, func(cfg *config.AppConfig) { cfg.ProbeTimeout = 100 * time.Millisecond })
	results := checker.CheckBatch(context.Background(), pages, 4)

	require.Len(t, results, len(pages))
	byURL := make(map[string]models.CheckResult, len(results))
	for _, r := range results {
		_, dup := byURL[r.URL]
		require.False(t, dup, "duplicate result for %s", r.URL)
		byURL[r.URL] = r
	}
	for _, p := range pages {
		_, ok := byURL[p.URL]
		assert.True(t, ok, "missing result for %s", p.URL)
	}
	assert.Equal(t, 404, byURL[server.URL+"/missing"].StatusCode)
	assert.Equal(t, 500, byURL[server.URL+"/broken"].StatusCode)
	assert.True(t, byURL[server.URL+"/broken"].Lenient)
	assert.Equal(t, 0, byURL[server.URL+"/hang"].StatusCode)
	assert.Equal(t, 0, byURL["http://[::1"].StatusCode)
}

func TestCheckBatch_WorkerBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	t.Cleanup(server.Close)

	urls := make([]string, 30)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", server.URL, i)
	}

	results := testChecker(t, nil).CheckURLs(context.Background(), urls, 3)

	assert.Len(t, results, 30)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestCheckBatch_GlobalRequestCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	t.Cleanup(server.Close)

	checker := testChecker(t, func(cfg *config.AppConfig) { cfg.MaxRequests = 2 })
	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", server.URL, i)
	}

	done := make(chan []models.CheckResult, 2)
	for range 2 {
		go func() { done <- checker.CheckURLs(context.Background(), urls, 5) }()
	}
	assert.Len(t, <-done, 10)
	assert.Len(t, <-done, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCheckBatch_Empty(t *testing.T) {
	results := testChecker(t, nil).CheckBatch(context.Background(), nil, 5)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFailureMessage(t *testing.T) {
	err := fmt.Errorf("boom")
	assert.Equal(t, "Timeout", failureMessage("Network_Timeout", err))
	assert.Equal(t, "Timeout", failureMessage("Network_TimeoutGeneric", err))
	assert.Equal(t, "Connection Error", failureMessage("Network_ConnectionRefused", err))
	assert.Equal(t, "Connection Error", failureMessage("Network_ConnectionReset", err))
	assert.Equal(t, "Connection Error", failureMessage("Network_DNSLookup", err))
	assert.Equal(t, "Error: boom", failureMessage("Unknown", err))
}
