package config

import (
	"fmt"
	"time"

	"sitemap-monitor/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Timeouts
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}

	// MaxRetries
	if c.MaxRetries == nil {
		c.MaxRetries = IntPtr(3)
	} else if *c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = IntPtr(0)
	}

	// Retry delays (only if retries enabled)
	if *c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// MaxDocumentBytes
	if c.MaxDocumentBytes < 0 {
		warnings = append(warnings, "max_document_bytes cannot be negative, defaulting to 50 MiB")
		c.MaxDocumentBytes = 0
	}
	if c.MaxDocumentBytes == 0 {
		c.MaxDocumentBytes = 50 * 1024 * 1024
	}

	// MaxRequests
	if c.MaxRequests < 0 {
		warnings = append(warnings, "max_requests cannot be negative, disabling the process-wide cap")
		c.MaxRequests = 0
	}

	// MaxDepth
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (unlimited)")
		c.MaxDepth = 0
	}

	// ExcludePatterns must compile
	if _, err := utils.CompileRegexPatterns(c.ExcludePatterns); err != nil {
		return warnings, fmt.Errorf("exclude_patterns: %w", err)
	}

	// VisitedStore
	switch c.VisitedStore {
	case "":
		c.VisitedStore = VisitedStoreMemory
	case VisitedStoreMemory, VisitedStoreBadger:
	default:
		return warnings, fmt.Errorf("%w: visited_store must be '%s' or '%s', got '%s'",
			utils.ErrConfigValidation, VisitedStoreMemory, VisitedStoreBadger, c.VisitedStore)
	}

	// StateDir
	if c.StateDir == "" {
		if c.VisitedStore == VisitedStoreBadger {
			warnings = append(warnings, "state_dir is empty, defaulting to './monitor_state'")
		}
		c.StateDir = "./monitor_state"
	}

	warnings = append(warnings, c.validateLimits()...)

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	// Server defaults
	c.validateServer()

	return warnings, nil
}

// DefaultLimits returns the built-in run limits
func DefaultLimits() Limits {
	return Limits{
		MaxURLs:     50,
		MaxMemoryMB: 0,
		ChunkSize:   25,
		Workers:     5,
	}
}

// validateLimits applies defaults to the run limits.
func (c *AppConfig) validateLimits() (warnings []string) {
	l := &c.Limits
	def := DefaultLimits()
	if l.MaxURLs < 0 {
		warnings = append(warnings, fmt.Sprintf("limits.max_urls cannot be negative, defaulting to %d", def.MaxURLs))
	}
	if l.MaxMemoryMB < 0 {
		warnings = append(warnings, "limits.max_memory_mb cannot be negative, setting to 0 (unlimited)")
		l.MaxMemoryMB = 0
	}
	if l.ChunkSize < 0 {
		warnings = append(warnings, fmt.Sprintf("limits.chunk_size cannot be negative, defaulting to %d", def.ChunkSize))
	}
	if l.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("limits.workers cannot be negative, defaulting to %d", def.Workers))
	}
	*l = l.WithDefaults(def)

	if l.ChunkSize > l.MaxURLs {
		warnings = append(warnings, fmt.Sprintf(
			"limits.chunk_size (%d) > limits.max_urls (%d), chunks will never fill", l.ChunkSize, l.MaxURLs))
	}
	return warnings
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 10
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// validateServer applies defaults to the HTTP front-end settings.
func (c *AppConfig) validateServer() {
	s := &c.Server
	if s.Addr == "" {
		s.Addr = ":5000"
	}
	if s.ReadHeaderTimeout <= 0 {
		s.ReadHeaderTimeout = 10 * time.Second
	}
	if s.ShutdownGrace <= 0 {
		s.ShutdownGrace = 15 * time.Second
	}
}
