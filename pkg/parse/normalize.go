package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsValidURL reports whether raw parses into a URL with both a scheme and a host.
// Malformed input is simply invalid; no network access is made.
func IsValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// NormalizeURL standardizes a URL for identity comparison.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// removes trailing slashes from paths (unless root "/"), ensures an empty path becomes "/"
// and drops the fragment. The query string is kept: paginated sitemaps such as
// sitemap.xml?page=2 are distinct documents.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
		normalized.RawPath = ""
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseAndNormalize parses an absolute URL string and normalizes it using NormalizeURL.
// The URL must carry a scheme and a host. Returns the normalized string, the parsed URL
// object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return "", nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", nil, fmt.Errorf("url %q is not absolute", urlStr)
	}
	return NormalizeURL(parsed), parsed, nil
}

// resolveReference resolves ref against base and returns the absolute URL.
// ok is false when ref is empty, unparsable, or does not resolve to an http(s) URL with a host.
func resolveReference(base *url.URL, ref string) (resolved string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := refURL
	if base != nil {
		abs = base.ResolveReference(refURL)
	}
	scheme := strings.ToLower(abs.Scheme)
	if (scheme != "http" && scheme != "https") || abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

// IsSitemapURL reports whether the URL path names an XML sitemap (.xml or .xml.gz)
func IsSitemapURL(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".xml") || strings.HasSuffix(path, ".xml.gz")
}

// isRobotsURL reports whether the URL points at a robots.txt file
func isRobotsURL(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Path, "/robots.txt")
}
