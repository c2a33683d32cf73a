package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
	"sitemap-monitor/pkg/utils"
)

// maxRequestBytes caps the JSON body of a process_sitemap request
const maxRequestBytes = 1 << 20

// SitemapProcessor runs one sitemap pipeline
type SitemapProcessor interface {
	ProcessSitemap(ctx context.Context, sitemapURL string, limits config.Limits) (*models.Report, error)
}

// Server is the HTTP front-end for the sitemap pipeline
type Server struct {
	processor SitemapProcessor
	cfg       config.ServerConfig
	log       *logrus.Entry
	http      *http.Server
}

// processRequest is the POST /process_sitemap body; limit fields are optional
type processRequest struct {
	SitemapURL string `json:"sitemap_url"`
	config.Limits
}

type errorResponse struct {
	Error string `json:"error"`
}

type memoryResponse struct {
	utils.MemoryUsage
	HeapAllocHuman string `json:"heap_alloc"`
	HeapSysHuman   string `json:"heap_sys"`
}

// NewServer creates the front-end; call Run to start listening
func NewServer(processor SitemapProcessor, cfg config.ServerConfig, log *logrus.Entry) *Server {
	s := &Server{
		processor: processor,
		cfg:       cfg,
		log:       log.WithField("component", "http_server"),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /memory", s.handleMemory)
	mux.HandleFunc("POST /process_sitemap", s.handleProcessSitemap)
	return mux
}

// Run serves until ctx is cancelled, then shuts down within the configured grace period
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", ln.Addr())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Service is running",
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	mem := utils.ReadMemoryUsage()
	writeJSON(w, http.StatusOK, memoryResponse{
		MemoryUsage:    mem,
		HeapAllocHuman: mem.HeapAllocHuman(),
		HeapSysHuman:   mem.HeapSysHuman(),
	})
}

func (s *Server) handleProcessSitemap(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	if req.SitemapURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No sitemap URL provided"})
		return
	}

	reqLog := s.log.WithField("sitemap_url", req.SitemapURL)
	reqLog.Debug("Processing sitemap request")
	start := time.Now()

	report, err := s.processor.ProcessSitemap(r.Context(), req.SitemapURL, req.Limits)
	if err != nil {
		switch utils.KindOf(err) {
		case utils.KindInvalidURL, utils.KindPipeline:
			reqLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Sitemap processing error: %v", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			reqLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Unexpected error: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An unexpected error occurred"})
		}
		return
	}

	reqLog.WithFields(logrus.Fields{
		"total_urls": report.TotalURLs,
		"duration":   time.Since(start),
	}).Info("Sitemap request completed")
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
