package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/stats"
	"sitemap-monitor/pkg/utils"
)

// limitsFromRequest reads the optional limit arguments; absent values stay zero and fall
// back to the configured defaults inside the pipeline
func limitsFromRequest(request mcp.CallToolRequest) config.Limits {
	return config.Limits{
		MaxURLs:     request.GetInt("max_urls", 0),
		MaxMemoryMB: request.GetInt("max_memory_mb", 0),
		ChunkSize:   request.GetInt("chunk_size", 0),
		Workers:     request.GetInt("worker_count", 0),
	}
}

// handleProcessSitemap handles the process_sitemap tool
func (s *Server) handleProcessSitemap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sitemapURL := request.GetString("sitemap_url", "")
	if sitemapURL == "" {
		return mcp.NewToolResultError("sitemap_url parameter is required"), nil
	}

	report, err := s.processor.ProcessSitemap(ctx, sitemapURL, limitsFromRequest(request))
	if err != nil {
		s.log.WithField("error_type", utils.CategorizeError(err)).Errorf("process_sitemap failed: %v", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(report)), nil
}

// handleCheckURLs handles the check_urls tool
func (s *Server) handleCheckURLs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := request.RequireStringSlice("urls")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(urls) == 0 {
		return mcp.NewToolResultError("urls must contain at least one URL"), nil
	}

	workers := request.GetInt("worker_count", 0)
	if workers <= 0 {
		workers = s.cfg.AppConfig.Limits.Workers
	}

	results := s.checker.CheckURLs(ctx, urls, workers)
	response := map[string]interface{}{
		"total_urls": len(results),
		"stats":      stats.Calculate(results),
		"results":    results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStartSitemapJob handles the start_sitemap_job tool
func (s *Server) handleStartSitemapJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sitemapURL := request.GetString("sitemap_url", "")
	if sitemapURL == "" {
		return mcp.NewToolResultError("sitemap_url parameter is required"), nil
	}

	job, created := s.jobManager.CreateJob(sitemapURL, limitsFromRequest(request))
	if !created {
		result := map[string]interface{}{
			"status":      "already_running",
			"message":     "A job is already in progress for this sitemap",
			"job_id":      job.ID,
			"sitemap_url": sitemapURL,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runSitemapJob(job.ID, sitemapURL, job.Limits)

	result := map[string]interface{}{
		"status":      "started",
		"message":     "Sitemap job started successfully",
		"job_id":      job.ID,
		"sitemap_url": sitemapURL,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runSitemapJob runs a sitemap pipeline in the background
func (s *Server) runSitemapJob(jobID, sitemapURL string, limits config.Limits) {
	s.jobManager.MarkRunning(jobID)
	jobLog := s.log.WithFields(logrus.Fields{"job_id": jobID, "sitemap_url": sitemapURL})
	jobLog.Info("Sitemap job started")

	report, err := s.processor.ProcessSitemap(s.jobManager.GetContext(jobID), sitemapURL, limits)
	if err != nil && errors.Is(err, context.Canceled) {
		jobLog.Warn("Sitemap job cancelled")
		return
	}
	s.jobManager.Finish(jobID, report, err)

	if err != nil {
		jobLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Sitemap job failed: %v", err)
		return
	}
	jobLog.Infof("Sitemap job completed: %d URLs", report.TotalURLs)
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":      job.ID,
		"sitemap_url": job.SitemapURL,
		"status":      job.Status,
		"started_at":  job.StartedAt.Format(time.RFC3339),
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if job.Report != nil {
		result["report"] = job.Report
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	cancelled := s.jobManager.CancelJob(jobID)
	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": cancelled,
	}
	if !cancelled {
		result["message"] = "Job is not running"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
