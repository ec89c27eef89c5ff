package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"shopscout/models"
	"shopscout/utils"
)

var priceBands = []models.PriceBucket{
	{Min: 0, Max: 100, Label: "Under 100"},
	{Min: 100, Max: 500, Label: "100 - 500"},
	{Min: 500, Max: 1000, Label: "500 - 1000"},
	{Min: 1000, Max: 0, Label: "Over 1000"},
}

// FacetService summarises a scored batch and renders results for the CLI.
type FacetService struct {
	logger *utils.Logger
}

func NewFacetService(logger *utils.Logger) *FacetService {
	return &FacetService{logger: logger}
}

// Generate counts listings per platform, brand, category and price band.
// Counts are ordered by frequency, then alphabetically.
func (s *FacetService) Generate(listings []models.ScoredListing) models.Facets {
	facets := models.Facets{
		Platforms:    []models.FacetItem{},
		Brands:       []models.FacetItem{},
		Categories:   []models.FacetItem{},
		PriceBuckets: make([]models.PriceBucket, len(priceBands)),
	}
	copy(facets.PriceBuckets, priceBands)

	if len(listings) == 0 {
		return facets
	}

	platforms := make(map[string]int)
	brands := make(map[string]int)
	categories := make(map[string]int)

	var total float64
	facets.MinPrice = listings[0].Price
	facets.MaxPrice = listings[0].Price

	for _, l := range listings {
		platforms[l.Platform.Name]++
		if l.Brand != "" {
			brands[l.Brand]++
		}
		if l.Category != "" {
			categories[l.Category]++
		}

		total += l.Price
		if l.Price < facets.MinPrice {
			facets.MinPrice = l.Price
		}
		if l.Price > facets.MaxPrice {
			facets.MaxPrice = l.Price
		}

		for i := range facets.PriceBuckets {
			b := &facets.PriceBuckets[i]
			if l.Price >= b.Min && (b.Max == 0 || l.Price < b.Max) {
				b.Count++
				break
			}
		}
	}

	facets.Platforms = rankCounts(platforms)
	facets.Brands = rankCounts(brands)
	facets.Categories = rankCounts(categories)
	facets.AveragePrice = round2(total / float64(len(listings)))
	facets.MinPrice = round2(facets.MinPrice)
	facets.MaxPrice = round2(facets.MaxPrice)

	return facets
}

func rankCounts(m map[string]int) []models.FacetItem {
	items := make([]models.FacetItem, 0, len(m))
	for v, c := range m {
		items = append(items, models.FacetItem{Value: v, Count: c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Value < items[j].Value
	})
	return items
}

// Print writes a human-readable summary of a search result to w.
func (s *FacetService) Print(w io.Writer, r *models.SearchResult, currencySymbol string) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🛒 RESULTS FOR %q (%s)\033[0m\n", r.Query, r.CountryCode)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Matches         : \033[1m%d\033[0m (page %d, %d per page)\n", r.TotalFound, r.Page, r.PageSize)
	fmt.Fprintf(w, "  Sources queried : %s\n", strings.Join(r.SourcesQueried, ", "))
	fmt.Fprintf(w, "  Elapsed         : %d ms\n", r.ElapsedMs)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  \033[31m! %s [%s]: %s\033[0m\n", e.Source, e.Kind, e.Message)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Ranked Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Listings) == 0 {
		fmt.Fprintf(w, "  No listings on this page\n")
	}
	offset := (r.Page - 1) * r.PageSize
	for i, l := range r.Listings {
		fmt.Fprintf(w, "  \033[1m%2d.\033[0m %-44s \033[1;32m%s%.2f\033[0m\n",
			offset+i+1, truncate(l.Title, 42), currencySymbol, l.Price)
		fmt.Fprintf(w, "      %-14s score %5.1f  %.1f★ (%d)  %s\n",
			truncate(l.Platform.Name, 14), l.OverallScore, l.Rating, l.ReviewCount, l.Availability)
	}
	fmt.Fprintln(w)

	f := r.Facets
	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if f.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s%.2f\033[0m\n", currencySymbol, f.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s%.2f\033[0m\n", currencySymbol, f.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s%.2f\033[0m\n", currencySymbol, f.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Platform\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, p := range f.Platforms {
		bar := strings.Repeat("█", p.Count)
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(p.Value, 28), bar, p.Count)
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(w, "\n  Try also: %s\n", strings.Join(r.Suggestions, " · "))
	}
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
