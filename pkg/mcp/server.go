package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/check"
	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/sitemap"
)

const (
	serverName    = "sitemap-monitor"
	serverVersion = "1.0.0"
)

// SitemapProcessor runs one sitemap pipeline
type SitemapProcessor interface {
	ProcessSitemap(ctx context.Context, sitemapURL string, limits config.Limits) (*models.Report, error)
}

// URLChecker probes a list of URLs
type URLChecker interface {
	CheckURLs(ctx context.Context, urls []string, workers int) []models.CheckResult
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Processor  SitemapProcessor // Built from AppConfig when nil
	Checker    URLChecker       // Built from AppConfig when nil
}

// Server exposes the sitemap pipeline as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	processor  SitemapProcessor
	checker    URLChecker
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	processor := cfg.Processor
	if processor == nil {
		p, err := sitemap.NewProcessor(cfg.AppConfig, logrus.NewEntry(cfg.Logger))
		if err != nil {
			return nil, fmt.Errorf("create sitemap processor: %w", err)
		}
		processor = p
	}
	checker := cfg.Checker
	if checker == nil {
		checker = check.NewChecker(cfg.AppConfig, logrus.NewEntry(cfg.Logger))
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		jobManager: NewJobManager(),
		processor:  processor,
		checker:    checker,
	}

	s.registerTools()
	return s, nil
}

func limitOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("max_urls",
			mcp.Description("Maximum number of page URLs to check (default from config)"),
			mcp.Min(0),
		),
		mcp.WithNumber("max_memory_mb",
			mcp.Description("Stop early when the heap reaches this many MiB (0 = unlimited)"),
			mcp.Min(0),
		),
		mcp.WithNumber("chunk_size",
			mcp.Description("URLs checked per batch (default from config)"),
			mcp.Min(0),
		),
		mcp.WithNumber("worker_count",
			mcp.Description("Concurrent status probes per batch (default from config)"),
			mcp.Min(0),
		),
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	processOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Discover every URL in a sitemap (following nested sitemap indexes) and report each URL's HTTP status with aggregate statistics. Blocks until done."),
		mcp.WithString("sitemap_url",
			mcp.Required(),
			mcp.Description("Sitemap, sitemap index, HTML sitemap page or robots.txt URL"),
		),
	}, limitOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("process_sitemap", processOpts...), s.handleProcessSitemap)

	checkURLsTool := mcp.NewTool("check_urls",
		mcp.WithDescription("Check the HTTP status of a list of URLs"),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("URLs to check"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("worker_count",
			mcp.Description("Concurrent probes (default from config)"),
			mcp.Min(0),
		),
	)
	s.mcpServer.AddTool(checkURLsTool, s.handleCheckURLs)

	startOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Start processing a sitemap in the background. Returns immediately with a job ID."),
		mcp.WithString("sitemap_url",
			mcp.Required(),
			mcp.Description("Sitemap URL to process"),
		),
	}, limitOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("start_sitemap_job", startOpts...), s.handleStartSitemapJob)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a sitemap job, including its report once completed"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_sitemap_job"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running sitemap job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_sitemap_job"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	s.log.Infof("Registered %d MCP tools", len(s.mcpServer.ListTools()))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
