package models

// SortBy selects the output ordering of a search.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortPriceLow  SortBy = "price_low"
	SortPriceHigh SortBy = "price_high"
	SortRating    SortBy = "rating"
	SortReviews   SortBy = "reviews"
	SortNewest    SortBy = "newest"
)

// ValidSortOptions returns every accepted SortBy value.
func ValidSortOptions() []SortBy {
	return []SortBy{SortRelevance, SortPriceLow, SortPriceHigh, SortRating, SortReviews, SortNewest}
}

// IsValidSort reports whether s is a known sort order. Empty counts as
// relevance.
func IsValidSort(s SortBy) bool {
	if s == "" {
		return true
	}
	for _, v := range ValidSortOptions() {
		if v == s {
			return true
		}
	}
	return false
}

// PriceRange bounds listing prices inclusively. Max == 0 means unbounded.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether price lies inside the range.
func (r PriceRange) Contains(price float64) bool {
	if price < r.Min {
		return false
	}
	if r.Max > 0 && price > r.Max {
		return false
	}
	return true
}

// Filters are the user constraints applied after scoring.
type Filters struct {
	PriceRange  PriceRange `json:"priceRange"`
	MinRating   float64    `json:"minRating"`
	InStockOnly bool       `json:"inStockOnly"`
	SortBy      SortBy     `json:"sortBy"`
	Category    string     `json:"category,omitempty"`
	Brand       string     `json:"brand,omitempty"`
}

// SearchQuery is the validated form of a search handed to sources.
type SearchQuery struct {
	RawQuery    string  `json:"rawQuery"`
	CountryCode string  `json:"countryCode"`
	Filters     Filters `json:"filters"`
}

// SearchRequest is the inbound call from the route layer or the CLI.
type SearchRequest struct {
	Text        string  `json:"query"`
	CountryCode string  `json:"country"`
	Filters     Filters `json:"filters"`
	Page        int     `json:"page"`
	PageSize    int     `json:"pageSize"`
}

// Locale is the country record a search runs under. Currency fields are
// copied onto every listing and never altered downstream.
type Locale struct {
	CountryCode    string `json:"countryCode" yaml:"code"`
	CountryName    string `json:"countryName" yaml:"name"`
	Currency       string `json:"currency" yaml:"currency"`
	CurrencySymbol string `json:"currencySymbol" yaml:"currency_symbol"`
}
