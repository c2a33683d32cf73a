package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrParsing          = errors.New("parsing error")                    // Wraps specific parsing error (URL, XML, HTML, robots)
	ErrFilesystem       = errors.New("filesystem error")                 // Wraps os errors
	ErrDatabase         = errors.New("database error")                   // Wraps badger errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrMaxURLsReached   = errors.New("maximum URL count reached")
	ErrMaxMemoryReached = errors.New("memory limit reached")
)

// ErrorKind is the closed set of failure categories a sitemap run can produce
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidURL
	KindFetch
	KindParse
	KindProbe
	KindResourceCap
	KindPipeline
)

// Kind sentinels, so callers can use errors.Is(err, ErrInvalidURL)
var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrFetch              = errors.New("fetch error")
	ErrParse              = errors.New("parse error")
	ErrProbeFailure       = errors.New("probe failure")
	ErrResourceCapReached = errors.New("resource cap reached")
	ErrPipeline           = errors.New("pipeline error")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidURL:  ErrInvalidURL,
	KindFetch:       ErrFetch,
	KindParse:       ErrParse,
	KindProbe:       ErrProbeFailure,
	KindResourceCap: ErrResourceCapReached,
	KindPipeline:    ErrPipeline,
}

// String implements fmt.Stringer for logging
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "InvalidURL"
	case KindFetch:
		return "FetchError"
	case KindParse:
		return "ParseError"
	case KindProbe:
		return "ProbeFailure"
	case KindResourceCap:
		return "ResourceCapReached"
	case KindPipeline:
		return "PipelineError"
	}
	return "Unknown"
}

// SitemapError carries the failure kind, the URL it originated from and the underlying cause
type SitemapError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// NewError builds a SitemapError. err may be nil.
func NewError(kind ErrorKind, url string, err error) *SitemapError {
	return &SitemapError{Kind: kind, URL: url, Err: err}
}

func (e *SitemapError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindInvalidURL:
		fmt.Fprintf(&b, "Invalid URL format: %s", e.URL)
	case KindFetch:
		fmt.Fprintf(&b, "Failed to fetch sitemap %s", e.URL)
	case KindParse:
		fmt.Fprintf(&b, "Failed to parse sitemap %s", e.URL)
	case KindProbe:
		fmt.Fprintf(&b, "Failed to check %s", e.URL)
	case KindResourceCap:
		fmt.Fprintf(&b, "Resource cap reached while processing %s", e.URL)
	case KindPipeline:
		fmt.Fprintf(&b, "Error processing sitemap %s", e.URL)
	default:
		fmt.Fprintf(&b, "Sitemap error for %s", e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SitemapError) Unwrap() error { return e.Err }

// Is matches the kind sentinel so errors.Is works without unwrapping to the cause
func (e *SitemapError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of the outermost SitemapError in err's chain, or KindUnknown
func KindOf(err error) ErrorKind {
	var se *SitemapError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// WrapErrorf wraps a sentinel with a formatted message
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	var se *SitemapError
	if errors.As(err, &se) && se.Err != nil {
		// Categorize by cause; the kind is logged separately
		err = se.Err
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		return "RetryFailed_" + categorizeNetwork(err, "NetworkOther")
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "410", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "XML") {
			return "Content_ParsingXML"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "robots") {
			return "Content_ParsingRobots"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDocumentTooLarge):
		return "Content_TooLarge"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrMaxURLsReached):
		return "Resource_MaxURLs"
	case errors.Is(err, ErrMaxMemoryReached):
		return "Resource_MaxMemory"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	return categorizeNetwork(err, "Unknown")
}

// categorizeNetwork classifies transport-level failures, returning fallback when nothing matches
func categorizeNetwork(err error, fallback string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "Network_BrokenPipe"
	}
	return fallback
}
