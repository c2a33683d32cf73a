package parse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"html"
	"io"
	"net/url"
	"regexp"

	"golang.org/x/net/html/charset"
)

// SitemapNamespace is the sitemaps.org protocol namespace
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// xmlLocEntry is a <sitemap> or <url> element; only its <loc> child matters here
type xmlLocEntry struct {
	Loc string `xml:"loc"`
}

// lenientLocPattern recovers <loc> text from documents the XML decoder rejects
var lenientLocPattern = regexp.MustCompile(`(?s)<loc>\s*(.*?)\s*</loc>`)

// errNoEntries marks a lenient scan that found nothing to recover
var errNoEntries = errors.New("no <loc> entries found")

// ParseSitemapXML decodes a sitemap index or urlset.
// Elements count when they are in no namespace, in the sitemaps.org namespace or in the
// document's own default namespace. If any <sitemap> element is present the document is
// an index and <url> entries are ignored.
func ParseSitemapXML(body []byte, base *url.URL) (Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var sitemaps, pages []string
	rootNS := ""
	rootSeen := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			rootSeen = true
			rootNS = start.Name.Space
			continue
		}
		if !acceptedNamespace(start.Name.Space, rootNS) {
			continue
		}

		switch start.Name.Local {
		case "sitemap", "url":
			var entry xmlLocEntry
			if err := dec.DecodeElement(&entry, &start); err != nil {
				return Result{}, err
			}
			loc, ok := resolveReference(base, entry.Loc)
			if !ok {
				continue
			}
			if start.Name.Local == "sitemap" {
				sitemaps = append(sitemaps, loc)
			} else {
				pages = append(pages, loc)
			}
		}
	}

	if !rootSeen {
		return Result{}, errors.New("empty XML document")
	}
	if len(sitemaps) > 0 {
		return Result{Kind: DocSitemapIndex, Sitemaps: sitemaps}, nil
	}
	return Result{Kind: DocURLSet, Pages: pages}, nil
}

func acceptedNamespace(space, rootNS string) bool {
	return space == "" || space == SitemapNamespace || space == rootNS
}

// ExtractLocsLenient pulls every <loc>…</loc> value out of a malformed document.
// Each candidate is classified by its own suffix: .xml and .xml.gz become child sitemaps,
// everything else a leaf page.
func ExtractLocsLenient(body []byte, base *url.URL) (Result, error) {
	res := Result{Kind: DocURLSet, Lenient: true}
	for _, m := range lenientLocPattern.FindAllSubmatch(body, -1) {
		loc, ok := resolveReference(base, html.UnescapeString(string(m[1])))
		if !ok {
			continue
		}
		if IsSitemapURL(loc) {
			res.Sitemaps = append(res.Sitemaps, loc)
		} else {
			res.Pages = append(res.Pages, loc)
		}
	}
	if len(res.Sitemaps) == 0 && len(res.Pages) == 0 {
		return Result{}, errNoEntries
	}
	if len(res.Pages) == 0 {
		res.Kind = DocSitemapIndex
	}
	return res, nil
}
