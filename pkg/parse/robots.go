package parse

import (
	"net/url"

	"github.com/temoto/robotstxt"

	"sitemap-monitor/pkg/utils"
)

// ParseRobots expands a robots.txt file into the sitemaps its Sitemap: directives name.
// robots.txt never yields leaf pages directly.
func ParseRobots(body []byte, base *url.URL) (Result, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return Result{}, utils.WrapErrorf(utils.ErrParsing, "robots.txt parsing failed: %v", err)
	}
	res := Result{Kind: DocRobots}
	for _, s := range data.Sitemaps {
		if loc, ok := resolveReference(base, s); ok {
			res.Sitemaps = append(res.Sitemaps, loc)
		}
	}
	return res, nil
}
