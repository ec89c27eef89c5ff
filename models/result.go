package models

// Kinds of advisory entries carried in SearchResult.Errors.
const (
	ErrorKindFetch     = "fetch"
	ErrorKindParse     = "parse"
	ErrorKindAllFailed = "all_failed"
	ErrorKindNoMatch   = "no_match"
)

// SourceError is one advisory entry in a search result.
type SourceError struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FacetItem counts listings sharing one value.
type FacetItem struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PriceBucket counts listings inside one price band. Max == 0 is open-ended.
type PriceBucket struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
	Label string  `json:"label"`
}

// Facets summarise the scored batch of a search.
type Facets struct {
	Platforms    []FacetItem   `json:"platforms"`
	Brands       []FacetItem   `json:"brands"`
	Categories   []FacetItem   `json:"categories"`
	PriceBuckets []PriceBucket `json:"priceBuckets"`
	MinPrice     float64       `json:"minPrice"`
	MaxPrice     float64       `json:"maxPrice"`
	AveragePrice float64       `json:"averagePrice"`
}

// SearchResult is the envelope returned by one search call.
type SearchResult struct {
	SearchID       string          `json:"searchId"`
	Query          string          `json:"query"`
	CountryCode    string          `json:"countryCode"`
	Listings       []ScoredListing `json:"listings"`
	TotalFound     int             `json:"totalFound"`
	Page           int             `json:"page"`
	PageSize       int             `json:"pageSize"`
	HasNext        bool            `json:"hasNext"`
	ElapsedMs      int64           `json:"elapsedMs"`
	SourcesQueried []string        `json:"sourcesQueried"`
	Errors         []SourceError   `json:"errors"`
	Facets         Facets          `json:"facets"`
	Suggestions    []string        `json:"suggestions"`
}
