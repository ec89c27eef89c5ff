package services

import (
	"sort"
	"strings"

	"shopscout/models"
)

// ApplyFilters returns the listings that pass every filter, ordered by
// filters.SortBy. Scores are not recomputed: price competitiveness keeps
// describing the full batch the listings were scored in. Ties keep their
// input order.
func ApplyFilters(listings []models.ScoredListing, f models.Filters) []models.ScoredListing {
	out := make([]models.ScoredListing, 0, len(listings))
	for _, l := range listings {
		if matches(l, f) {
			out = append(out, l)
		}
	}
	sortListings(out, f.SortBy)
	return out
}

func matches(l models.ScoredListing, f models.Filters) bool {
	if !f.PriceRange.Contains(l.Price) {
		return false
	}
	if l.Rating < f.MinRating {
		return false
	}
	if f.InStockOnly && l.Availability != models.InStock {
		return false
	}
	if f.Category != "" && !fuzzyMatch(l.Category, f.Category) {
		return false
	}
	if f.Brand != "" && !fuzzyMatch(l.Brand, f.Brand) {
		return false
	}
	return true
}

// fuzzyMatch is a case-insensitive substring test in both directions.
// An empty field never matches.
func fuzzyMatch(field, term string) bool {
	a := strings.ToLower(strings.TrimSpace(field))
	b := strings.ToLower(strings.TrimSpace(term))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sortListings(ls []models.ScoredListing, by models.SortBy) {
	var less func(i, j int) bool
	switch by {
	case models.SortPriceLow:
		less = func(i, j int) bool { return ls[i].Price < ls[j].Price }
	case models.SortPriceHigh:
		less = func(i, j int) bool { return ls[i].Price > ls[j].Price }
	case models.SortRating:
		less = func(i, j int) bool { return ls[i].Rating > ls[j].Rating }
	case models.SortReviews:
		less = func(i, j int) bool { return ls[i].ReviewCount > ls[j].ReviewCount }
	case models.SortNewest:
		less = func(i, j int) bool { return ls[i].FetchedAt.After(ls[j].FetchedAt) }
	default:
		less = func(i, j int) bool { return ls[i].OverallScore > ls[j].OverallScore }
	}
	sort.SliceStable(ls, less)
}

// Assemble slices one page out of the ordered listings. TotalFound is the
// count before slicing. page and pageSize must already be validated (>= 1).
func Assemble(ordered []models.ScoredListing, page, pageSize int) models.SearchResult {
	total := len(ordered)
	pages := (total + pageSize - 1) / pageSize
	// page may be close to MaxInt: compare page counts, not offsets.
	start, end := total, total
	if page-1 < pages {
		start = (page - 1) * pageSize
		end = min(start+pageSize, total)
	}

	listings := make([]models.ScoredListing, end-start)
	copy(listings, ordered[start:end])

	return models.SearchResult{
		Listings:   listings,
		TotalFound: total,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page < pages,
	}
}
