package models

// SitemapRef is a URL known to reference a sitemap document (index or urlset)
type SitemapRef struct {
	URL    string
	Depth  int    // Index nesting depth; the input sitemap is 0
	Parent string // URL of the document that referenced it ("" for the input)
}

// PageURL is a leaf page to health-check, already resolved to an absolute URL
type PageURL struct {
	URL     string
	Sitemap string // Sitemap the URL was extracted from
	Lenient bool   // Recovered by the lenient <loc> fallback on a malformed sitemap
}

// CheckResult is the outcome of probing a single PageURL
type CheckResult struct {
	URL           string  `json:"url"`
	StatusCode    int     `json:"status_code"` // 0 = no HTTP response obtained
	StatusMessage string  `json:"status_message"`
	IsRedirect    bool    `json:"is_redirect"`
	RedirectURL   *string `json:"redirect_url"`
	Lenient       bool    `json:"lenient,omitempty"`
}

// Stats aggregates a result set by status code and category
type Stats struct {
	Total            int                        `json:"total"`
	StatusCounts     map[int]int                `json:"status_counts"`
	StatusCategories map[StatusCategory]int     `json:"status_categories"`
	Percentages      map[StatusCategory]float64 `json:"percentages"`
}

// Report is the full output of one sitemap run
type Report struct {
	SitemapURL     string        `json:"sitemap_url"`
	ProcessingTime float64       `json:"processing_time"` // Seconds, two decimals
	TotalURLs      int           `json:"total_urls"`
	Stats          Stats         `json:"stats"`
	Results        []CheckResult `json:"results"`
}
