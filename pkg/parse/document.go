package parse

import (
	"net/url"
	"strings"

	"sitemap-monitor/pkg/utils"
)

// DocumentKind is the classification of a fetched sitemap document
type DocumentKind int

const (
	DocUnknown DocumentKind = iota
	DocSitemapIndex
	DocURLSet
	DocHTML
	DocRobots
)

// String implements fmt.Stringer for logging
func (k DocumentKind) String() string {
	switch k {
	case DocSitemapIndex:
		return "sitemapindex"
	case DocURLSet:
		return "urlset"
	case DocHTML:
		return "html"
	case DocRobots:
		return "robots"
	}
	return "unknown"
}

// Result splits one document into child sitemap references and leaf page URLs.
// Both lists hold absolute URLs.
type Result struct {
	Kind     DocumentKind
	Sitemaps []string
	Pages    []string
	Lenient  bool // Entries came from the lenient <loc> fallback
}

// ParseDocument classifies a fetched document and extracts its links.
// First match wins: a /robots.txt URL is read for Sitemap: directives; a content type
// containing "xml" or a .xml/.xml.gz URL is parsed as sitemap XML, falling back to lenient
// <loc> extraction when the XML is malformed; anything else is parsed as HTML.
// Failures are returned as a ParseError carrying docURL.
func ParseDocument(body []byte, contentType, docURL string) (Result, error) {
	base, err := url.Parse(docURL)
	if err != nil {
		return Result{}, utils.NewError(utils.KindParse, docURL, utils.WrapErrorf(utils.ErrParsing, "URL parsing failed: %v", err))
	}

	if isRobotsURL(base) {
		res, err := ParseRobots(body, base)
		if err != nil {
			return Result{}, utils.NewError(utils.KindParse, docURL, err)
		}
		return res, nil
	}

	if strings.Contains(strings.ToLower(contentType), "xml") || IsSitemapURL(docURL) {
		res, strictErr := ParseSitemapXML(body, base)
		if strictErr == nil {
			return res, nil
		}
		res, lenientErr := ExtractLocsLenient(body, base)
		if lenientErr != nil {
			return Result{}, utils.NewError(utils.KindParse, docURL,
				utils.WrapErrorf(utils.ErrParsing, "XML parsing failed (%v) and lenient fallback found nothing", strictErr))
		}
		return res, nil
	}

	res, err := ParseHTMLLinks(body, contentType, base)
	if err != nil {
		return Result{}, utils.NewError(utils.KindParse, docURL, err)
	}
	return res, nil
}
