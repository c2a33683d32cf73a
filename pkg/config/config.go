package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent identifies the monitor to the hosts it probes
const DefaultUserAgent = "SitemapMonitor/1.0"

// Visited store backends
const (
	VisitedStoreMemory = "memory"
	VisitedStoreBadger = "badger"
)

// Limits bounds a single sitemap run. Passed explicitly into every call, never shared globally.
type Limits struct {
	MaxURLs     int `yaml:"max_urls" json:"max_urls,omitempty"`
	MaxMemoryMB int `yaml:"max_memory_mb" json:"max_memory_mb,omitempty"` // Heap ceiling in MiB (0 = unlimited)
	ChunkSize   int `yaml:"chunk_size" json:"chunk_size,omitempty"`
	Workers     int `yaml:"workers" json:"worker_count,omitempty"`
}

// WithDefaults returns l with every non-positive field taken from def
func (l Limits) WithDefaults(def Limits) Limits {
	if l.MaxURLs <= 0 {
		l.MaxURLs = def.MaxURLs
	}
	if l.MaxMemoryMB <= 0 {
		l.MaxMemoryMB = def.MaxMemoryMB
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = def.ChunkSize
	}
	if l.Workers <= 0 {
		l.Workers = def.Workers
	}
	return l
}

// MaxMemoryBytes converts the MiB ceiling to bytes (0 = unlimited)
func (l Limits) MaxMemoryBytes() uint64 {
	if l.MaxMemoryMB <= 0 {
		return 0
	}
	return uint64(l.MaxMemoryMB) * 1024 * 1024
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string           `yaml:"user_agent"`
	FetchTimeout       time.Duration    `yaml:"fetch_timeout,omitempty"` // Per sitemap document fetch
	ProbeTimeout       time.Duration    `yaml:"probe_timeout,omitempty"` // Per URL status probe
	MaxRetries         *int             `yaml:"max_retries,omitempty"`   // nil=default 3, 0=no retries
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	MaxDocumentBytes   int64            `yaml:"max_document_bytes,omitempty"` // Cap on a single sitemap body
	MaxRequests        int              `yaml:"max_requests,omitempty"`       // Process-wide cap on in-flight probes (0 = only per-run workers)
	MaxDepth           int              `yaml:"max_depth,omitempty"`          // Sitemap index nesting depth (0 = unlimited)
	ExcludePatterns    []string         `yaml:"exclude_patterns,omitempty"`   // Regex patterns on leaf URL paths to skip
	VisitedStore       string           `yaml:"visited_store,omitempty"`
	StateDir           string           `yaml:"state_dir,omitempty"`
	Limits             Limits           `yaml:"limits"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Server             ServerConfig     `yaml:"server,omitempty"`
}

// Retries returns the effective max_retries (0 when unset)
func (c *AppConfig) Retries() int {
	if c.MaxRetries == nil {
		return 0
	}
	return *c.MaxRetries
}

// IntPtr returns a pointer to v, for optional integer settings
func IntPtr(v int) *int {
	return &v
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// ServerConfig holds settings for the HTTP front-end
type ServerConfig struct {
	Addr              string        `yaml:"addr,omitempty"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout,omitempty"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace,omitempty"`
}

// Load reads and parses the YAML file at path. A missing file is only tolerated when
// allowMissing is set, in which case an empty config is returned for Validate to fill.
func Load(path string, allowMissing bool) (*AppConfig, error) {
	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
