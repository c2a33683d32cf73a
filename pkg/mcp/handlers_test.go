package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/utils"
)

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []config.Limits
	report  *models.Report
	err     error
	release chan struct{} // When set, ProcessSitemap blocks until closed or ctx is done
}

func (f *fakeProcessor) ProcessSitemap(ctx context.Context, sitemapURL string, limits config.Limits) (*models.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, limits)
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, utils.NewError(utils.KindPipeline, sitemapURL, ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	report := *f.report
	report.SitemapURL = sitemapURL
	return &report, nil
}

func (f *fakeProcessor) lastLimits() config.Limits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeChecker struct {
	workers int
}

func (f *fakeChecker) CheckURLs(ctx context.Context, urls []string, workers int) []models.CheckResult {
	f.workers = workers
	results := make([]models.CheckResult, len(urls))
	for i, u := range urls {
		results[i] = models.CheckResult{URL: u, StatusCode: 200, StatusMessage: "OK"}
	}
	return results
}

func sampleReport() *models.Report {
	return &models.Report{
		TotalURLs: 1,
		Results:   []models.CheckResult{{URL: "https://example.com/a", StatusCode: 200, StatusMessage: "OK"}},
	}
}

func newTestServer(t *testing.T, proc SitemapProcessor, checker URLChecker) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	appCfg := &config.AppConfig{}
	_, err := appCfg.Validate()
	require.NoError(t, err)

	s, err := NewServer(&ServerConfig{
		AppConfig: appCfg,
		Transport: "stdio",
		Logger:    logger,
		Processor: proc,
		Checker:   checker,
	})
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	return out
}

func TestNewServer_RequiresAppConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})

	tools := s.mcpServer.ListTools()
	for _, name := range []string{"process_sitemap", "check_urls", "start_sitemap_job", "get_job_status", "cancel_job"} {
		assert.Contains(t, tools, name)
	}
}

func TestHandleProcessSitemap(t *testing.T) {
	t.Run("returns report", func(t *testing.T) {
		proc := &fakeProcessor{report: sampleReport()}
		s := newTestServer(t, proc, &fakeChecker{})

		result, err := s.handleProcessSitemap(context.Background(), callRequest("process_sitemap", map[string]any{
			"sitemap_url": testSitemap,
			"max_urls":    float64(7),
			"chunk_size":  float64(3),
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		out := decodeResult(t, result)
		assert.Equal(t, testSitemap, out["sitemap_url"])
		assert.Equal(t, float64(1), out["total_urls"])

		limits := proc.lastLimits()
		assert.Equal(t, 7, limits.MaxURLs)
		assert.Equal(t, 3, limits.ChunkSize)
		assert.Equal(t, 0, limits.Workers)
	})

	t.Run("missing url", func(t *testing.T) {
		s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})
		result, err := s.handleProcessSitemap(context.Background(), callRequest("process_sitemap", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("pipeline error surfaces as tool error", func(t *testing.T) {
		procErr := utils.NewError(utils.KindInvalidURL, "nope", utils.ErrParsing)
		s := newTestServer(t, &fakeProcessor{err: procErr}, &fakeChecker{})

		result, err := s.handleProcessSitemap(context.Background(), callRequest("process_sitemap", map[string]any{"sitemap_url": "nope"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Invalid URL format: nope")
	})
}

func TestHandleCheckURLs(t *testing.T) {
	t.Run("checks every url", func(t *testing.T) {
		checker := &fakeChecker{}
		s := newTestServer(t, &fakeProcessor{report: sampleReport()}, checker)

		result, err := s.handleCheckURLs(context.Background(), callRequest("check_urls", map[string]any{
			"urls": []any{"https://example.com/a", "https://example.com/b"},
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		out := decodeResult(t, result)
		assert.Equal(t, float64(2), out["total_urls"])
		assert.Len(t, out["results"], 2)
		assert.Equal(t, config.DefaultLimits().Workers, checker.workers)
	})

	t.Run("explicit worker count", func(t *testing.T) {
		checker := &fakeChecker{}
		s := newTestServer(t, &fakeProcessor{report: sampleReport()}, checker)

		_, err := s.handleCheckURLs(context.Background(), callRequest("check_urls", map[string]any{
			"urls":         []any{"https://example.com/a"},
			"worker_count": float64(2),
		}))
		require.NoError(t, err)
		assert.Equal(t, 2, checker.workers)
	})

	t.Run("missing urls", func(t *testing.T) {
		s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})
		result, err := s.handleCheckURLs(context.Background(), callRequest("check_urls", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("empty urls", func(t *testing.T) {
		s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})
		result, err := s.handleCheckURLs(context.Background(), callRequest("check_urls", map[string]any{"urls": []any{}}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func waitForStatus(t *testing.T, s *Server, jobID string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		job = s.jobManager.GetJob(jobID)
		return job != nil && job.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func startJob(t *testing.T, s *Server, sitemapURL string) map[string]any {
	t.Helper()
	result, err := s.handleStartSitemapJob(context.Background(), callRequest("start_sitemap_job", map[string]any{
		"sitemap_url": sitemapURL,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	return decodeResult(t, result)
}

func TestSitemapJobLifecycle(t *testing.T) {
	proc := &fakeProcessor{report: sampleReport(), release: make(chan struct{})}
	s := newTestServer(t, proc, &fakeChecker{})

	started := startJob(t, s, testSitemap)
	assert.Equal(t, "started", started["status"])
	jobID, _ := started["job_id"].(string)
	require.NotEmpty(t, jobID)

	waitForStatus(t, s, jobID, JobStatusRunning)

	dup := startJob(t, s, testSitemap)
	assert.Equal(t, "already_running", dup["status"])
	assert.Equal(t, jobID, dup["job_id"])

	close(proc.release)
	waitForStatus(t, s, jobID, JobStatusCompleted)

	result, err := s.handleGetJobStatus(context.Background(), callRequest("get_job_status", map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	status := decodeResult(t, result)
	assert.Equal(t, "completed", status["status"])
	assert.Contains(t, status, "completed_at")
	report, ok := status["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, testSitemap, report["sitemap_url"])
}

func TestSitemapJobFailure(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{err: errors.New("upstream exploded")}, &fakeChecker{})

	started := startJob(t, s, testSitemap)
	jobID := started["job_id"].(string)

	job := waitForStatus(t, s, jobID, JobStatusFailed)
	assert.Equal(t, "upstream exploded", job.ErrorMessage)
}

func TestHandleCancelJob(t *testing.T) {
	proc := &fakeProcessor{report: sampleReport(), release: make(chan struct{})}
	s := newTestServer(t, proc, &fakeChecker{})

	started := startJob(t, s, testSitemap)
	jobID := started["job_id"].(string)
	waitForStatus(t, s, jobID, JobStatusRunning)

	result, err := s.handleCancelJob(context.Background(), callRequest("cancel_job", map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, true, out["cancelled"])

	// The worker observes ctx cancellation and must not overwrite the status
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, JobStatusCancelled, s.jobManager.GetJob(jobID).Status)

	result, err = s.handleCancelJob(context.Background(), callRequest("cancel_job", map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, false, out["cancelled"])
}

func TestHandleJobTools_UnknownJob(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})

	result, err := s.handleGetJobStatus(context.Background(), callRequest("get_job_status", map[string]any{"job_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleCancelJob(context.Background(), callRequest("cancel_job", map[string]any{"job_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleGetJobStatus(context.Background(), callRequest("get_job_status", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestShutdownCancelsJobs(t *testing.T) {
	proc := &fakeProcessor{report: sampleReport(), release: make(chan struct{})}
	s := newTestServer(t, proc, &fakeChecker{})

	jobID := startJob(t, s, testSitemap)["job_id"].(string)
	waitForStatus(t, s, jobID, JobStatusRunning)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, JobStatusCancelled, s.jobManager.GetJob(jobID).Status)
}

func TestRun_UnknownTransport(t *testing.T) {
	s := newTestServer(t, &fakeProcessor{report: sampleReport()}, &fakeChecker{})
	s.cfg.Transport = "carrier-pigeon"
	assert.Error(t, s.Run())
}

func TestFormatJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", formatJSON(map[string]int{"a": 1}))
	assert.Contains(t, formatJSON(make(chan int)), "error")
}
