package parse

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"sitemap-monitor/pkg/utils"
)

// ParseHTMLLinks treats an HTML page as a sitemap: every a[href] is resolved against base,
// links to .xml/.xml.gz files become child sitemaps and everything else a leaf page.
// Non-http(s) links (mailto:, javascript:, tel:) and in-page fragments are dropped, and
// repeated links are reported once.
func ParseHTMLLinks(body []byte, contentType string, base *url.URL) (Result, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return Result{}, utils.WrapErrorf(utils.ErrParsing, "HTML charset detection failed: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return Result{}, utils.WrapErrorf(utils.ErrParsing, "HTML parsing failed: %v", err)
	}

	res := Result{Kind: DocHTML}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		link, ok := resolveReference(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		if IsSitemapURL(link) {
			res.Sitemaps = append(res.Sitemaps, link)
		} else {
			res.Pages = append(res.Pages, link)
		}
	})
	return res, nil
}
