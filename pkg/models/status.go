package models

// StatusCategory buckets HTTP status codes by class
type StatusCategory string

const (
	CategorySuccess     StatusCategory = "success"      // 2xx
	CategoryRedirect    StatusCategory = "redirect"     // 3xx
	CategoryClientError StatusCategory = "client_error" // 4xx
	CategoryServerError StatusCategory = "server_error" // 5xx
	CategoryOther       StatusCategory = "other"        // Anything else, including the 0 sentinel
)

// AllCategories lists every category in reporting order
var AllCategories = []StatusCategory{
	CategorySuccess,
	CategoryRedirect,
	CategoryClientError,
	CategoryServerError,
	CategoryOther,
}

// CategoryOf maps a status code to its category
func CategoryOf(code int) StatusCategory {
	switch {
	case code >= 200 && code < 300:
		return CategorySuccess
	case code >= 300 && code < 400:
		return CategoryRedirect
	case code >= 400 && code < 500:
		return CategoryClientError
	case code >= 500 && code < 600:
		return CategoryServerError
	}
	return CategoryOther
}

// String implements fmt.Stringer for logging
func (c StatusCategory) String() string {
	return string(c)
}

// IsValid returns true if the category is one of the known buckets
func (c StatusCategory) IsValid() bool {
	switch c {
	case CategorySuccess, CategoryRedirect, CategoryClientError, CategoryServerError, CategoryOther:
		return true
	}
	return false
}
